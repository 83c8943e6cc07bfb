// Package interview defines the immutable configuration of a single mock
// interview and the system prompt derived from it.
package interview

import (
	"fmt"
	"strings"
)

type Category string

const (
	Behavioral   Category = "behavioral"
	Technical    Category = "technical"
	SystemDesign Category = "system-design"
)

func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case Behavioral:
		return Behavioral, nil
	case Technical:
		return Technical, nil
	case SystemDesign:
		return SystemDesign, nil
	}
	return "", fmt.Errorf("unknown interview category %q", s)
}

// Config is created by the setup flow and frozen once the interview starts.
type Config struct {
	Resume         string   `json:"resume"`
	JobDescription string   `json:"job_description"`
	Category       Category `json:"category"`
}

var categoryFocus = map[Category]string{
	Behavioral:   "Ask behavioral questions about past experience, teamwork, conflict, and motivation. Probe for concrete situations and outcomes.",
	Technical:    "Ask technical questions targeting the skills the job description requires. Follow up on vague answers and ask the candidate to reason aloud.",
	SystemDesign: "Ask the candidate to design systems relevant to the role. Push on trade-offs, scaling, and failure handling.",
}

// SystemPrompt builds the interviewer role framing carried on the live
// connection, embedding the resume and job description verbatim.
func SystemPrompt(cfg Config) string {
	var b strings.Builder
	b.WriteString("You are a professional interviewer conducting a mock " + string(cfg.Category) + " interview.\n")
	b.WriteString(categoryFocus[cfg.Category])
	b.WriteString("\nAsk one question at a time and keep responses short and spoken in tone. Start by greeting the candidate and asking them to introduce themselves.\n")
	b.WriteString("\nCANDIDATE RESUME:\n")
	b.WriteString(cfg.Resume)
	b.WriteString("\n\nJOB DESCRIPTION:\n")
	b.WriteString(cfg.JobDescription)
	return b.String()
}
