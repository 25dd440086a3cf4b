package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Collector is the HTTP client for the remote segment store.
type Collector struct {
	baseURL string
	client  *http.Client
}

// NewCollector creates a client for the collector at baseURL. Request
// deadlines come from the caller's context.
func NewCollector(baseURL string) *Collector {
	return &Collector{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

type saveSegmentRequest struct {
	MeetingID      string `json:"meetingId"`
	Hostmail       string `json:"hostmail"`
	TranscriptText string `json:"transcriptText"`
}

type saveSegmentResponse struct {
	SegmentNumber int `json:"segmentNumber"`
}

type lastSegmentResponse struct {
	TranscriptText string `json:"transcriptText"`
}

// SaveSegment creates a segment and returns the collector-assigned
// sequence number.
func (c *Collector) SaveSegment(ctx context.Context, meetingID, hostmail, text string) (int, error) {
	body, err := json.Marshal(saveSegmentRequest{
		MeetingID:      meetingID,
		Hostmail:       hostmail,
		TranscriptText: text,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal segment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/segments/save", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("save segment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("collector returned status %d", resp.StatusCode)
	}

	var out saveSegmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	return out.SegmentNumber, nil
}

// LastSegment returns the text of the meeting's most recent segment,
// or "" when the collector has none.
func (c *Collector) LastSegment(ctx context.Context, meetingID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/segments/last/"+meetingID, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch last segment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("collector returned status %d", resp.StatusCode)
	}

	var out lastSegmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.TranscriptText, nil
}
