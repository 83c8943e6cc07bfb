// Package transcript models the ordered, speaker-tagged record of an
// interview. The live session appends streamed fragments to the message in
// progress and freezes it when the owning turn completes; everything else
// reads finalized snapshots.
package transcript

import "strings"

type Speaker string

const (
	User Speaker = "USER"
	AI   Speaker = "AI"
)

type Message struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
	Final   bool    `json:"final"`
}

// Transcript is append-only except for in-place growth of the last message
// while its turn is in flight. At most one message is non-final at any time,
// and it is always the last element. Not safe for concurrent use; the
// orchestrator owns all mutation.
type Transcript struct {
	messages []Message
}

func New() *Transcript {
	return &Transcript{}
}

// AppendFragment adds streamed text to the in-progress message for the given
// speaker, opening one if none exists. Fragments arriving before the turn
// completes concatenate; a fragment for a different speaker finalizes the
// current turn first so the invariant holds.
func (t *Transcript) AppendFragment(speaker Speaker, text string) {
	if n := len(t.messages); n > 0 && !t.messages[n-1].Final {
		last := &t.messages[n-1]
		if last.Speaker == speaker {
			last.Text += text
			return
		}
		t.CompleteTurn()
	}
	t.messages = append(t.messages, Message{Speaker: speaker, Text: text})
}

// CompleteTurn finalizes the in-progress message, trimming whitespace. An
// accumulation that trims to nothing is dropped rather than kept as an empty
// entry. No-op when every message is already final.
func (t *Transcript) CompleteTurn() {
	n := len(t.messages)
	if n == 0 || t.messages[n-1].Final {
		return
	}
	text := strings.TrimSpace(t.messages[n-1].Text)
	if text == "" {
		t.messages = t.messages[:n-1]
		return
	}
	t.messages[n-1].Text = text
	t.messages[n-1].Final = true
}

// Snapshot returns a copy of the finalized messages only. The in-progress
// tail, if any, is excluded; callers get a stable read-only view.
func (t *Transcript) Snapshot() []Message {
	out := make([]Message, 0, len(t.messages))
	for _, m := range t.messages {
		if m.Final {
			out = append(out, m)
		}
	}
	return out
}

// Messages returns all entries including the in-progress tail, for live
// display.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int { return len(t.messages) }
