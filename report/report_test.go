package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"

	"rehearse/interview"
	"rehearse/transcript"
)

const validReport = `{
  "overallScore": 72,
  "answerQuality": {"score": 70, "feedback": "Solid structure.", "example": "I led the migration"},
  "communicationSkills": {"score": 75, "feedback": "Clear.", "fillerWords": 4, "pace": "even"},
  "contentFeedback": {"score": 71, "feedback": "Good depth.", "missedOpportunities": ["quantify impact"]}
}`

func TestParseValidReport(t *testing.T) {
	fb, err := Parse(validReport)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if fb.OverallScore != 72 {
		t.Errorf("OverallScore = %d, want 72", fb.OverallScore)
	}
	if fb.AnswerQuality.Example != "I led the migration" {
		t.Errorf("Example = %q", fb.AnswerQuality.Example)
	}
	if fb.CommunicationSkills.FillerWords != 4 {
		t.Errorf("FillerWords = %d, want 4", fb.CommunicationSkills.FillerWords)
	}
	if len(fb.ContentFeedback.MissedOpportunities) != 1 {
		t.Errorf("MissedOpportunities = %v", fb.ContentFeedback.MissedOpportunities)
	}
}

func TestParseRejectsTextualFillerWords(t *testing.T) {
	raw := strings.Replace(validReport, `"fillerWords": 4`, `"fillerWords": "some um"`, 1)
	_, err := Parse(raw)
	if err == nil {
		t.Fatal("textual filler-word count accepted")
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Errorf("error type = %T, want *GenerationError", err)
	}
}

func TestParseStripsFence(t *testing.T) {
	fenced := "```json\n" + validReport + "\n```"
	fb, err := Parse(fenced)
	if err != nil {
		t.Fatalf("Parse fenced: %v", err)
	}
	if fb.CommunicationSkills.Pace != "even" {
		t.Errorf("Pace = %q", fb.CommunicationSkills.Pace)
	}
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse("not json at all")
	if err == nil {
		t.Fatal("expected error")
	}
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Errorf("error type = %T, want *GenerationError", err)
	}
}

func TestValidationBounds(t *testing.T) {
	v := validator.New()

	fb, err := Parse(validReport)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Struct(fb); err != nil {
		t.Errorf("valid report rejected: %v", err)
	}

	fb.OverallScore = 140
	if err := v.Struct(fb); err == nil {
		t.Error("out-of-range score accepted")
	}

	fb.OverallScore = 72
	fb.AnswerQuality.Feedback = ""
	if err := v.Struct(fb); err == nil {
		t.Error("missing feedback accepted")
	}

	fb.AnswerQuality.Feedback = "Solid structure."
	fb.CommunicationSkills.FillerWords = -1
	if err := v.Struct(fb); err == nil {
		t.Error("negative filler-word count accepted")
	}

	fb.CommunicationSkills.FillerWords = 0
	if err := v.Struct(fb); err != nil {
		t.Errorf("zero filler words rejected: %v", err)
	}

	fb.CommunicationSkills.Pace = ""
	if err := v.Struct(fb); err == nil {
		t.Error("missing pace accepted")
	}
}

func TestBuildPromptIncludesTranscript(t *testing.T) {
	cfg := interview.Config{Category: interview.Behavioral, JobDescription: "Backend engineer"}
	messages := []transcript.Message{
		{Speaker: transcript.AI, Text: "Tell me about yourself.", Final: true},
		{Speaker: transcript.User, Text: "I build distributed systems.", Final: true},
	}
	prompt := buildPrompt(cfg, messages)
	for _, want := range []string{"behavioral", "Backend engineer", "AI: Tell me about yourself.", "USER: I build distributed systems."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
