// Package segment splits streaming model output into sentence-sized
// fragments as early as possible, so each fragment can be spoken while
// the rest of the reply is still being generated.
//
// The splitter favors late over wrong: a misplaced boundary produces
// unnatural speech, a late one only adds latency. Abbreviations,
// decimals, URLs and email addresses therefore suppress the boundary a
// bare period would otherwise create.
//
// Usage:
//
//	seg := segment.New(segment.Config{MinLength: 10})
//	for delta := range deltas {
//	    for _, sentence := range seg.Feed(delta) {
//	        send(sentence)
//	    }
//	}
//	if rest := seg.Flush(); rest != "" {
//	    send(rest)
//	}
package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Config controls fragment boundaries.
type Config struct {
	// MinLength is the minimum fragment length in runes. Boundaries
	// that would produce a shorter fragment are skipped so fillers
	// like "OK." ride along with the next sentence. Default 10.
	MinLength int

	// MaxLength is the maximum fragment length in runes before a
	// break is forced at a comma, a space, or outright. Default 200.
	MaxLength int

	// EnableSmartPunctuation suppresses boundaries inside
	// abbreviations, decimals, URLs and email addresses.
	EnableSmartPunctuation bool
}

// Segmenter accumulates streamed text and yields complete sentences.
// It is not safe for concurrent use; each generation turn owns one.
type Segmenter struct {
	config Config
	buffer strings.Builder
}

// Abbreviations whose trailing period does not end a sentence.
var commonAbbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "vs": true, "etc": true, "inc": true,
	"ltd": true, "corp": true, "co": true, "no": true, "vol": true,
	"fig": true, "e.g": true, "i.e": true, "a.m": true, "p.m": true,
	"u.s": true, "u.k": true, "st": true, "ave": true, "blvd": true,
	"rd": true, "apt": true, "dept": true, "est": true, "approx": true,
	"sq": true, "ft": true, "min": true, "max": true,
}

// Periods that are part of a number, price or version, not a boundary.
var numberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+\.\d*$`),      // 12.34 or a trailing "12."
	regexp.MustCompile(`\$\d+\.\d*$`),    // $9.99
	regexp.MustCompile(`\d+\.\d*%$`),     // 5.5%
	regexp.MustCompile(`v\d+\.\d*$`),     // v1.0
	regexp.MustCompile(`\d+\.\d+\.\d*$`), // 1.2.3
}

// Periods inside URLs, domains and email addresses.
var urlEmailPatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://\S*$`),
	regexp.MustCompile(`www\.\S*$`),
	regexp.MustCompile(`\S+@\S+\.\S*$`),
	regexp.MustCompile(`\S+\.(com|org|net|io|ai)$`),
}

var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true, ';': true,
}

// Fallback split points for overlong sentences.
var softBreakPunctuation = map[rune]bool{
	',': true, ':': true,
}

// New creates a segmenter. Zero config fields take defaults.
func New(config Config) *Segmenter {
	if config.MinLength <= 0 {
		config.MinLength = 10
	}
	if config.MaxLength <= 0 {
		config.MaxLength = 200
	}
	return &Segmenter{config: config}
}

// Feed appends streamed text and returns any sentences that completed.
func (s *Segmenter) Feed(text string) []string {
	if text == "" {
		return nil
	}
	s.buffer.WriteString(text)

	var sentences []string
	for {
		content := s.buffer.String()
		breakPoint := s.findBreak(content)
		if breakPoint <= 0 {
			break
		}

		sentence := strings.TrimSpace(content[:breakPoint])
		s.buffer.Reset()
		s.buffer.WriteString(content[breakPoint:])

		if sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}

// Flush returns whatever remains in the buffer, trimmed, and resets.
// Call it when the stream ends.
func (s *Segmenter) Flush() string {
	rest := strings.TrimSpace(s.buffer.String())
	s.buffer.Reset()
	return rest
}

// Pending returns the unsegmented remainder.
func (s *Segmenter) Pending() string {
	return s.buffer.String()
}

// Reset discards buffered text.
func (s *Segmenter) Reset() {
	s.buffer.Reset()
}

// findBreak returns the byte index just past the next valid sentence
// boundary, or 0 when the buffer holds no complete sentence yet.
func (s *Segmenter) findBreak(text string) int {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}

	limit := len(runes)
	if limit > s.config.MaxLength {
		limit = s.config.MaxLength
	}

	for i := 0; i < limit; i++ {
		r := runes[i]
		if !sentenceEnders[r] {
			continue
		}

		// Mid-ellipsis: wait for the run of periods to end.
		if r == '.' && i+1 < len(runes) && runes[i+1] == '.' {
			continue
		}

		// A boundary this early would yield a fragment below the
		// minimum, so keep scanning for a later one.
		if i+1 < s.config.MinLength {
			continue
		}

		if s.config.EnableSmartPunctuation && r == '.' {
			before := string(runes[:i+1])
			after := ""
			if i+1 < len(runes) {
				after = string(runes[i+1:])
			}
			if s.isSpecialCase(before, after) {
				continue
			}
		}

		return len(string(runes[:i+1]))
	}

	if len(runes) >= s.config.MaxLength {
		return s.findForcedBreak(runes)
	}
	return 0
}

// findForcedBreak splits an overlong sentence: at the last comma if
// possible, then the last space, then hard at MaxLength.
func (s *Segmenter) findForcedBreak(runes []rune) int {
	if pos := s.findSoftBreak(runes); pos > 0 {
		return pos
	}
	if pos := s.findSpaceBreak(runes); pos > 0 {
		return pos
	}

	maxRunes := s.config.MaxLength
	if maxRunes > len(runes) {
		maxRunes = len(runes)
	}
	return len(string(runes[:maxRunes]))
}

func (s *Segmenter) findSoftBreak(runes []rune) int {
	for i := len(runes) - 1; i >= s.config.MinLength; i-- {
		if softBreakPunctuation[runes[i]] {
			return len(string(runes[:i+1]))
		}
	}
	return 0
}

func (s *Segmenter) findSpaceBreak(runes []rune) int {
	for i := len(runes) - 1; i >= s.config.MinLength; i-- {
		if unicode.IsSpace(runes[i]) {
			return len(string(runes[:i+1]))
		}
	}
	return 0
}

// isSpecialCase reports whether the period ending textBefore is part of
// an abbreviation, number, URL or ellipsis rather than a boundary.
func (s *Segmenter) isSpecialCase(textBefore, textAfter string) bool {
	if s.isAbbreviation(textBefore) {
		// Titles like Dr. and Mrs. are followed by a name, never
		// a new sentence.
		if isPrefixAbbreviation(textBefore) {
			return true
		}
		// Other abbreviations (etc., e.g.) can legitimately end a
		// sentence when the next word starts one.
		return !isNewSentenceStart(textAfter)
	}

	for _, pattern := range numberPatterns {
		if pattern.MatchString(textBefore) {
			return !isNewSentenceStart(textAfter)
		}
	}

	for _, pattern := range urlEmailPatterns {
		if pattern.MatchString(textBefore) {
			return !isNewSentenceStart(textAfter)
		}
	}

	if strings.HasSuffix(textBefore, "..") {
		return true
	}

	// A lowercase letter straight after the period means we are in
	// the middle of something, most likely a URL path.
	if len(textAfter) > 0 {
		nextRune, _ := utf8.DecodeRuneInString(textAfter)
		if unicode.IsLower(nextRune) {
			return true
		}
	}

	return false
}

// isNewSentenceStart reports whether what follows looks like the start
// of a new sentence, i.e. whitespace then an uppercase letter.
func isNewSentenceStart(textAfter string) bool {
	if len(textAfter) < 2 {
		return false
	}
	trimmed := strings.TrimLeft(textAfter, " \t")
	if len(trimmed) == 0 {
		return false
	}
	firstRune, _ := utf8.DecodeRuneInString(trimmed)
	return unicode.IsUpper(firstRune)
}

// isPrefixAbbreviation reports whether text ends in a personal title.
func isPrefixAbbreviation(text string) bool {
	text = strings.TrimSuffix(text, ".")
	words := strings.Fields(strings.TrimSpace(text))
	if len(words) == 0 {
		return false
	}
	lastWord := strings.ToLower(words[len(words)-1])

	prefixAbbrs := map[string]bool{
		"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
		"sr": true, "jr": true, "st": true, "rev": true, "gen": true,
		"col": true, "lt": true, "sgt": true, "capt": true,
	}
	return prefixAbbrs[lastWord]
}

func (s *Segmenter) isAbbreviation(text string) bool {
	text = strings.TrimSuffix(text, ".")
	words := strings.Fields(strings.TrimSpace(text))
	if len(words) == 0 {
		return false
	}
	lastWord := strings.ToLower(words[len(words)-1])
	lastWord = strings.TrimSuffix(lastWord, ".")
	return commonAbbreviations[lastWord]
}
