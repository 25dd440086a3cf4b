package transcript

import (
	"regexp"
	"strings"
)

const (
	// MinQualifyingLength is the trimmed length a fragment must exceed
	// to count as speech activity.
	MinQualifyingLength = 2

	// MinMeaningfulLength is the shortest trimmed fragment worth
	// persisting in a segment.
	MinMeaningfulLength = 15
)

var bracketedOnly = regexp.MustCompile(`^\[[^\]]*\]$`)

// Status output some ASR frontends emit in between real speech.
var boilerplatePhrases = []string{
	"blank_audio",
	"recording started",
	"recording stopped",
	"recording in progress",
	"transcription active",
	"waiting for speech",
	"connection established",
	"listening...",
}

var fillerWords = map[string]struct{}{
	"um": {}, "uh": {}, "hmm": {}, "mhm": {}, "huh": {},
	"yeah": {}, "yes": {}, "no": {}, "okay": {}, "ok": {},
	"so": {}, "well": {}, "like": {}, "right": {},
}

// IsSystemMessage reports whether text looks like ASR status output
// rather than speech: bracket-only markers such as "[BLANK_AUDIO]" or
// a known boilerplate phrase.
func IsSystemMessage(text string) bool {
	trimmed := strings.TrimSpace(text)
	if bracketedOnly.MatchString(trimmed) {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range boilerplatePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// IsFiller reports whether text is a single filler token.
func IsFiller(text string) bool {
	word := strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".,!?")
	if strings.ContainsAny(word, " \t") {
		return false
	}
	_, ok := fillerWords[word]
	return ok
}

// Qualifying returns the fragments that count as speech activity: no
// system messages, no lone fillers, trimmed length above
// MinQualifyingLength.
func Qualifying(fragments []Fragment) []Fragment {
	var out []Fragment
	for _, f := range fragments {
		trimmed := strings.TrimSpace(f.Text)
		if len(trimmed) <= MinQualifyingLength {
			continue
		}
		if IsSystemMessage(trimmed) || IsFiller(trimmed) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Meaningful returns the fragments worth persisting in a segment: no
// system messages, no lone fillers, trimmed length of at least
// MinMeaningfulLength.
func Meaningful(fragments []Fragment) []Fragment {
	var out []Fragment
	for _, f := range fragments {
		trimmed := strings.TrimSpace(f.Text)
		if len(trimmed) < MinMeaningfulLength {
			continue
		}
		if IsSystemMessage(trimmed) || IsFiller(trimmed) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Combine joins fragment text with single spaces and collapses any
// internal whitespace runs.
func Combine(fragments []Fragment) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, strings.TrimSpace(f.Text))
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
