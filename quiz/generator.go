package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pollscribe/pollscribe/store"
)

// ErrNotReady means the meeting transcript is too short to base
// questions on.
var ErrNotReady = errors.New("transcript not ready for question generation")

// Question is one generated multiple-choice question.
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
	Source   string   `json:"source"` // "ai" or "fallback"
}

// Config holds question-generation settings.
type Config struct {
	// BaseURL of the model backend. Empty disables the remote path and
	// every generation uses the deterministic fallback.
	BaseURL string

	// Model name passed to the backend.
	Model string

	// Timeout for one generation request.
	Timeout time.Duration
}

// Generator turns a meeting transcript into quiz questions. The remote
// model is preferred; when it is unreachable or returns garbage the
// deterministic fallback fills in so the host always gets questions.
type Generator struct {
	cfg    Config
	store  *store.Store
	client *http.Client
}

// New creates a generator backed by st.
func New(cfg Config, st *store.Store) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Generator{
		cfg:    cfg,
		store:  st,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Generate produces count questions for the meeting. A count of zero
// asks for the recommended number; any count is clamped to what the
// transcript can support.
func (g *Generator) Generate(ctx context.Context, meetingID string, count int) ([]Question, error) {
	sum, err := g.store.Summarize(meetingID)
	if err != nil {
		return nil, fmt.Errorf("summarize meeting: %w", err)
	}
	if !sum.ReadyForAI {
		return nil, fmt.Errorf("%w: %d words", ErrNotReady, sum.TotalWords)
	}

	capability := store.QuestionCapability(sum)
	if count <= 0 {
		count = capability.RecommendedQuestions
	}
	if count < capability.MinQuestions {
		count = capability.MinQuestions
	}
	if count > capability.MaxQuestions {
		count = capability.MaxQuestions
	}

	if g.cfg.BaseURL != "" {
		questions, err := g.generateRemote(ctx, sum.FullText, count)
		if err == nil {
			return questions, nil
		}
		slog.Warn("remote question generation failed, using fallback",
			"error", err,
			"meetingID", meetingID)
	}

	questions := Fallback(sum.FullText, count)
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no usable sentences", ErrNotReady)
	}
	return questions, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

const promptTemplate = `Create %d multiple-choice quiz questions from this lecture transcript.
Respond with only a JSON array; each element must have "question", "options" (4 strings), and "answer".

Transcript:
%s`

func (g *Generator) generateRemote(ctx context.Context, text string, count int) ([]Question, error) {
	body, err := json.Marshal(generateRequest{
		Model:  g.cfg.Model,
		Prompt: fmt.Sprintf(promptTemplate, count, text),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model backend returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var questions []Question
	if err := json.Unmarshal([]byte(out.Response), &questions); err != nil {
		return nil, fmt.Errorf("model response is not a question array: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("model returned no questions")
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	for i := range questions {
		questions[i].Source = "ai"
	}
	return questions, nil
}
