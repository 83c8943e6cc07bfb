// Package report turns a finished interview transcript into structured
// feedback via single-shot constrained generation.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"rehearse/gemini"
	"rehearse/interview"
	"rehearse/transcript"
)

// Feedback is the graded evaluation of one interview.
type Feedback struct {
	OverallScore        int                 `json:"overallScore" validate:"gte=0,lte=100"`
	AnswerQuality       AnswerQuality       `json:"answerQuality" validate:"required"`
	CommunicationSkills CommunicationSkills `json:"communicationSkills" validate:"required"`
	ContentFeedback     ContentFeedback     `json:"contentFeedback" validate:"required"`
}

type AnswerQuality struct {
	Score    int    `json:"score" validate:"gte=0,lte=100"`
	Feedback string `json:"feedback" validate:"required"`
	Example  string `json:"example" validate:"required"`
}

type CommunicationSkills struct {
	Score    int    `json:"score" validate:"gte=0,lte=100"`
	Feedback string `json:"feedback" validate:"required"`
	// FillerWords counts filler-word occurrences; zero is a valid count.
	FillerWords int    `json:"fillerWords" validate:"gte=0"`
	Pace        string `json:"pace" validate:"required"`
}

type ContentFeedback struct {
	Score               int      `json:"score" validate:"gte=0,lte=100"`
	Feedback            string   `json:"feedback" validate:"required"`
	MissedOpportunities []string `json:"missedOpportunities" validate:"required"`
}

// GenerationError marks a failed or malformed report generation. The
// transcript is still intact; the caller decides whether to retry.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("report generation: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator produces feedback from a completed interview.
type Generator interface {
	Generate(ctx context.Context, cfg interview.Config, messages []transcript.Message) (*Feedback, error)
}

type geminiGenerator struct {
	client   *gemini.Client
	validate *validator.Validate
}

// NewGenerator wraps the backend client.
func NewGenerator(client *gemini.Client) Generator {
	return &geminiGenerator{
		client:   client,
		validate: validator.New(),
	}
}

// responseSchema constrains the model to the Feedback shape.
var responseSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "overallScore": {"type": "INTEGER"},
    "answerQuality": {
      "type": "OBJECT",
      "properties": {
        "score": {"type": "INTEGER"},
        "feedback": {"type": "STRING"},
        "example": {"type": "STRING"}
      },
      "required": ["score", "feedback", "example"]
    },
    "communicationSkills": {
      "type": "OBJECT",
      "properties": {
        "score": {"type": "INTEGER"},
        "feedback": {"type": "STRING"},
        "fillerWords": {"type": "INTEGER"},
        "pace": {"type": "STRING"}
      },
      "required": ["score", "feedback", "fillerWords", "pace"]
    },
    "contentFeedback": {
      "type": "OBJECT",
      "properties": {
        "score": {"type": "INTEGER"},
        "feedback": {"type": "STRING"},
        "missedOpportunities": {"type": "ARRAY", "items": {"type": "STRING"}}
      },
      "required": ["score", "feedback", "missedOpportunities"]
    }
  },
  "required": ["overallScore", "answerQuality", "communicationSkills", "contentFeedback"]
}`)

func (g *geminiGenerator) Generate(ctx context.Context, cfg interview.Config, messages []transcript.Message) (*Feedback, error) {
	raw, err := g.client.GenerateJSON(ctx, buildPrompt(cfg, messages), responseSchema)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}
	fb, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := g.validate.Struct(fb); err != nil {
		return nil, &GenerationError{Err: fmt.Errorf("invalid report: %w", err)}
	}
	return fb, nil
}

// Parse decodes model output into Feedback, tolerating a markdown code fence
// around the JSON body.
func Parse(raw string) (*Feedback, error) {
	cleaned := stripFence(raw)
	var fb Feedback
	if err := json.Unmarshal([]byte(cleaned), &fb); err != nil {
		return nil, &GenerationError{Err: fmt.Errorf("parsing report JSON: %w", err)}
	}
	return &fb, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func buildPrompt(cfg interview.Config, messages []transcript.Message) string {
	var b strings.Builder
	b.WriteString("You are an expert interview coach. Evaluate the candidate's performance in the mock interview transcript below.\n\n")
	fmt.Fprintf(&b, "Interview type: %s\n", cfg.Category)
	if cfg.JobDescription != "" {
		fmt.Fprintf(&b, "Target role:\n%s\n", cfg.JobDescription)
	}
	b.WriteString("\nTranscript:\n")
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Speaker, m.Text)
	}
	b.WriteString("\nScore each dimension from 0 to 100 and report the number of filler words the candidate used. Quote a concrete example from the candidate's answers where possible. Be specific and actionable.")
	return b.String()
}
