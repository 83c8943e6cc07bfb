package report

import (
	"context"

	"rehearse/interview"
	"rehearse/transcript"
)

// FakeGenerator records its inputs and returns canned results for tests.
type FakeGenerator struct {
	Report *Feedback
	Err    error

	Calls    int
	Messages []transcript.Message
}

func (f *FakeGenerator) Generate(_ context.Context, _ interview.Config, messages []transcript.Message) (*Feedback, error) {
	f.Calls++
	f.Messages = messages
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Report, nil
}
