package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pollscribe/pollscribe/transcript"
)

// Store is the local transcript database: an append-only fragment log
// plus the per-meeting segment table. All operations are synchronous
// local I/O; nothing here touches the network.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS fragments (
	id TEXT PRIMARY KEY,
	meetingId TEXT NOT NULL,
	text TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	speaker TEXT NOT NULL,
	participantId TEXT NOT NULL,
	confidence REAL NOT NULL,
	isFinal INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fragments_meeting ON fragments(meetingId, timestamp);

CREATE TABLE IF NOT EXISTS segments (
	meetingId TEXT NOT NULL,
	sequenceNumber INTEGER NOT NULL,
	text TEXT NOT NULL,
	savedAt INTEGER NOT NULL,
	UNIQUE(meetingId, sequenceNumber)
);
`

// Open opens the database at path, creating the schema when needed.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores a fragment, assigning an id when it has none and
// defaulting timestamp and confidence. No deduplication happens at
// this layer.
func (s *Store) Append(f transcript.Fragment) (transcript.Fragment, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Timestamp == 0 {
		f.Timestamp = time.Now().UnixMilli()
	}
	if f.Confidence == 0 {
		f.Confidence = transcript.DefaultConfidence
	}
	if f.Speaker == "" {
		f.Speaker = transcript.SpeakerGuest
	}

	_, err := s.db.Exec(`
		INSERT INTO fragments (id, meetingId, text, timestamp, speaker, participantId, confidence, isFinal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.MeetingID, f.Text, f.Timestamp, string(f.Speaker), f.ParticipantID, f.Confidence, boolToInt(f.IsFinal))
	if err != nil {
		return transcript.Fragment{}, fmt.Errorf("insert fragment: %w", err)
	}
	return f, nil
}

// List returns fragments in timestamp order. An empty meetingID
// returns every fragment across all meetings.
func (s *Store) List(meetingID string) ([]transcript.Fragment, error) {
	query := `SELECT id, meetingId, text, timestamp, speaker, participantId, confidence, isFinal FROM fragments`
	var args []any
	if meetingID != "" {
		query += ` WHERE meetingId = ?`
		args = append(args, meetingID)
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fragments: %w", err)
	}
	defer rows.Close()

	var out []transcript.Fragment
	for rows.Next() {
		var f transcript.Fragment
		var speaker string
		var isFinal int
		if err := rows.Scan(&f.ID, &f.MeetingID, &f.Text, &f.Timestamp,
			&speaker, &f.ParticipantID, &f.Confidence, &isFinal); err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		f.Speaker = transcript.Speaker(speaker)
		f.IsFinal = isFinal != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

// Clear removes fragments for one meeting, or everything when
// meetingID is empty.
func (s *Store) Clear(meetingID string) error {
	query := `DELETE FROM fragments`
	var args []any
	if meetingID != "" {
		query += ` WHERE meetingId = ?`
		args = append(args, meetingID)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("clear fragments: %w", err)
	}
	return nil
}

// SaveSegment persists a new segment for the meeting and returns the
// assigned sequence number. Numbers are monotonic per meeting.
func (s *Store) SaveSegment(meetingID, text string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin segment save: %w", err)
	}

	var next int
	row := tx.QueryRow(`SELECT COALESCE(MAX(sequenceNumber), 0) + 1 FROM segments WHERE meetingId = ?`, meetingID)
	if err := row.Scan(&next); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("next sequence number: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO segments (meetingId, sequenceNumber, text, savedAt) VALUES (?, ?, ?, ?)`,
		meetingID, next, text, time.Now().UnixMilli())
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("insert segment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit segment: %w", err)
	}
	return next, nil
}

// LastSegment returns the most recent segment for the meeting, or nil
// when none has been saved yet.
func (s *Store) LastSegment(meetingID string) (*transcript.Segment, error) {
	row := s.db.QueryRow(`
		SELECT meetingId, sequenceNumber, text, savedAt
		FROM segments
		WHERE meetingId = ?
		ORDER BY sequenceNumber DESC
		LIMIT 1`, meetingID)

	var seg transcript.Segment
	var savedAt int64
	if err := row.Scan(&seg.MeetingID, &seg.SequenceNumber, &seg.Text, &savedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan segment: %w", err)
	}
	seg.SavedAt = time.UnixMilli(savedAt)
	return &seg, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
