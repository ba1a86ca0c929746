package twilio

import (
	"fmt"
	"strings"
	"text/template"
)

// streamTemplate answers an inbound call by connecting its audio to a
// bidirectional media stream.
var streamTemplate = template.Must(template.New("twiml").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url="{{.StreamURL}}" />
    </Connect>
</Response>`))

// StreamTwiML renders the voice response that streams call audio to
// streamURL.
func StreamTwiML(streamURL string) (string, error) {
	var b strings.Builder
	data := struct{ StreamURL string }{StreamURL: streamURL}
	if err := streamTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render stream TwiML: %w", err)
	}
	return b.String(), nil
}
