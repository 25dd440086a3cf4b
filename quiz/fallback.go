package quiz

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minSentenceWords = 6
	minBlankLength   = 5
	optionCount      = 4
)

// Fallback builds fill-in-the-blank questions straight from the
// transcript text, no model involved. The output is deterministic for
// a given transcript so repeated generations agree.
func Fallback(text string, count int) []Question {
	sentences := splitSentences(text)

	// Collect distractor candidates from the whole transcript first.
	candidates := blankCandidates(text)

	var questions []Question
	for _, sentence := range sentences {
		if len(questions) >= count {
			break
		}

		words := strings.Fields(sentence)
		if len(words) < minSentenceWords {
			continue
		}

		blank := pickBlank(words)
		if blank == "" {
			continue
		}

		stem := strings.Replace(sentence, blank, "_____", 1)
		questions = append(questions, Question{
			Question: fmt.Sprintf("Fill in the blank: %s", stem),
			Options:  buildOptions(blank, candidates),
			Answer:   blank,
			Source:   "fallback",
		})
	}
	return questions
}

func splitSentences(text string) []string {
	var sentences []string
	for _, raw := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '?' || r == '!'
	}) {
		if s := strings.TrimSpace(raw); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// pickBlank chooses the longest content word of the sentence.
func pickBlank(words []string) string {
	best := ""
	for _, w := range words {
		w = strings.TrimFunc(w, unicode.IsPunct)
		if len(w) >= minBlankLength && len(w) > len(best) {
			best = w
		}
	}
	return best
}

// blankCandidates returns the distinct content words of the transcript
// in first-seen order; they serve as distractors.
func blankCandidates(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(text) {
		w = strings.TrimFunc(w, unicode.IsPunct)
		if len(w) < minBlankLength {
			continue
		}
		key := strings.ToLower(w)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, w)
	}
	return out
}

func buildOptions(answer string, candidates []string) []string {
	options := []string{answer}
	for _, c := range candidates {
		if len(options) >= optionCount {
			break
		}
		if strings.EqualFold(c, answer) {
			continue
		}
		options = append(options, c)
	}
	return options
}
