package transcript

import "time"

// Speaker identifies who produced a fragment.
type Speaker string

const (
	SpeakerHost  Speaker = "host"
	SpeakerGuest Speaker = "guest"
)

// SpeakerFromRole maps an announced role onto a speaker. Anything that
// is not explicitly the host counts as a guest.
func SpeakerFromRole(role string) Speaker {
	if role == string(SpeakerHost) {
		return SpeakerHost
	}
	return SpeakerGuest
}

// DefaultConfidence is assumed when the ASR relay does not report one.
const DefaultConfidence = 0.9

// Fragment is a single unit of recognized speech. Fragments are
// immutable once created and ordered by Timestamp; MeetingID partitions
// everything else.
type Fragment struct {
	ID            string  `json:"id,omitempty"`
	Text          string  `json:"text"`
	Timestamp     int64   `json:"timestamp"` // milliseconds since epoch
	Speaker       Speaker `json:"speaker"`
	ParticipantID string  `json:"participantId"`
	MeetingID     string  `json:"meetingId"`
	Confidence    float64 `json:"confidence"`
	IsFinal       bool    `json:"isFinal"`
}

// NewFragment builds a final fragment stamped with the current time.
func NewFragment(meetingID, participantID, text string, speaker Speaker) Fragment {
	return Fragment{
		Text:          text,
		Timestamp:     time.Now().UnixMilli(),
		Speaker:       speaker,
		ParticipantID: participantID,
		MeetingID:     meetingID,
		Confidence:    DefaultConfidence,
		IsFinal:       true,
	}
}

// Segment is a persisted, deduplicated block of transcript text
// covering one uninterrupted speech episode. Segments are never
// mutated; the next segment supersedes the previous one.
type Segment struct {
	MeetingID      string    `json:"meetingId"`
	SequenceNumber int       `json:"sequenceNumber"`
	Text           string    `json:"text"`
	SavedAt        time.Time `json:"savedAt"`
}
