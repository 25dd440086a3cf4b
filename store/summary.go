package store

import "strings"

// ReadyWordCount is the minimum word count before a transcript is
// worth sending to question generation.
const ReadyWordCount = 10

// Summary describes how much usable transcript a meeting has.
type Summary struct {
	TotalRecords       int     `json:"totalRecords"`
	TotalWords         int     `json:"totalWords"`
	TotalDurationMs    int64   `json:"totalDurationMs"`
	UniqueParticipants int     `json:"uniqueParticipants"`
	AvgWordsPerMinute  float64 `json:"avgWordsPerMinute"`
	FullText           string  `json:"fullText"`
	ReadyForAI         bool    `json:"readyForAI"`
}

// Capability bounds how many quiz questions a transcript can support.
type Capability struct {
	MinQuestions         int    `json:"minQuestions"`
	MaxQuestions         int    `json:"maxQuestions"`
	RecommendedQuestions int    `json:"recommendedQuestions"`
	Confidence           string `json:"confidence"`
}

// Summarize computes summary statistics over a meeting's fragments.
func (s *Store) Summarize(meetingID string) (Summary, error) {
	fragments, err := s.List(meetingID)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	sum.TotalRecords = len(fragments)

	participants := make(map[string]struct{})
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, strings.TrimSpace(f.Text))
		participants[f.ParticipantID] = struct{}{}
	}
	sum.UniqueParticipants = len(participants)
	sum.FullText = strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	sum.TotalWords = len(strings.Fields(sum.FullText))

	if len(fragments) > 1 {
		sum.TotalDurationMs = fragments[len(fragments)-1].Timestamp - fragments[0].Timestamp
	}
	if sum.TotalDurationMs > 0 {
		sum.AvgWordsPerMinute = float64(sum.TotalWords) / (float64(sum.TotalDurationMs) / 60000)
	}
	sum.ReadyForAI = sum.TotalWords >= ReadyWordCount

	return sum, nil
}

// QuestionCapability maps transcript volume onto a question budget.
// The steps are coarse on purpose; only the boundary values matter.
func QuestionCapability(sum Summary) Capability {
	switch w := sum.TotalWords; {
	case w < 20:
		return Capability{MinQuestions: 1, MaxQuestions: 2, RecommendedQuestions: 1, Confidence: "very-low"}
	case w < 50:
		return Capability{MinQuestions: 1, MaxQuestions: 3, RecommendedQuestions: 2, Confidence: "low"}
	case w < 100:
		return Capability{MinQuestions: 2, MaxQuestions: 5, RecommendedQuestions: 3, Confidence: "medium"}
	case w < 200:
		return Capability{MinQuestions: 3, MaxQuestions: 8, RecommendedQuestions: 5, Confidence: "high"}
	default:
		return Capability{MinQuestions: 5, MaxQuestions: 12, RecommendedQuestions: 8, Confidence: "very-high"}
	}
}
