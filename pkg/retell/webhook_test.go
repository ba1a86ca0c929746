package retell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"call_started","data":{"call_id":"call_1"}}`)

	sig := Sign(body, "key_test")
	assert.True(t, VerifySignature(body, "key_test", sig))

	// Tampered body, wrong key, empty signature all fail.
	assert.False(t, VerifySignature(append(body, ' '), "key_test", sig))
	assert.False(t, VerifySignature(body, "key_other", sig))
	assert.False(t, VerifySignature(body, "key_test", ""))
	assert.False(t, VerifySignature(body, "", sig))
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{
		"event": "call_ended",
		"data": {
			"call_id": "call_1",
			"agent_id": "agent_1",
			"call_status": "ended",
			"from_number": "+14155550100",
			"to_number": "+14155550199",
			"disconnection_reason": "user_hangup",
			"transcript": "Agent: Hi.\nUser: Bye.",
			"transcript_object": [
				{"role": "agent", "content": "Hi."},
				{"role": "user", "content": "Bye."}
			]
		}
	}`)

	event, err := ParseWebhook(body)
	require.NoError(t, err)

	assert.Equal(t, EventCallEnded, event.Event)
	assert.Equal(t, "call_1", event.Call.CallID)
	assert.Equal(t, "user_hangup", event.Call.DisconnectionReason)
	require.Len(t, event.Call.TranscriptObject, 2)
	assert.Equal(t, "agent", event.Call.TranscriptObject[0].Role)
	assert.Equal(t, "Bye.", event.Call.TranscriptObject[1].Content)
}

func TestParseWebhookRejectsGarbage(t *testing.T) {
	_, err := ParseWebhook([]byte(`{not json`))
	require.Error(t, err)

	_, err = ParseWebhook([]byte(`{"data":{"call_id":"call_1"}}`))
	require.Error(t, err, "a delivery without an event name is useless")
}
