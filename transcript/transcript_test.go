package transcript

import "testing"

func checkInvariant(t *testing.T, tr *Transcript) {
	t.Helper()
	msgs := tr.Messages()
	for i, m := range msgs {
		if !m.Final && i != len(msgs)-1 {
			t.Fatalf("non-final message at index %d of %d", i, len(msgs))
		}
	}
}

func TestFragmentsConcatenate(t *testing.T) {
	tr := New()
	tr.AppendFragment(User, "Hel")
	tr.AppendFragment(User, "lo")
	checkInvariant(t, tr)
	tr.CompleteTurn()

	msgs := tr.Snapshot()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Speaker != User || msgs[0].Text != "Hello" {
		t.Errorf("got %+v, want finalized USER %q", msgs[0], "Hello")
	}
}

func TestWhitespaceOnlyTurnDropped(t *testing.T) {
	tr := New()
	tr.AppendFragment(AI, "  ")
	tr.AppendFragment(AI, "\n\t")
	tr.CompleteTurn()
	if n := tr.Len(); n != 0 {
		t.Errorf("got %d messages, want 0", n)
	}
}

func TestFinalizedTextTrimmed(t *testing.T) {
	tr := New()
	tr.AppendFragment(User, "  tell me about yourself ")
	tr.CompleteTurn()
	if got := tr.Snapshot()[0].Text; got != "tell me about yourself" {
		t.Errorf("got %q", got)
	}
}

func TestSpeakerChangeFinalizesPreviousTurn(t *testing.T) {
	tr := New()
	tr.AppendFragment(User, "question")
	tr.AppendFragment(AI, "answer")
	checkInvariant(t, tr)

	msgs := tr.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if !msgs[0].Final || msgs[0].Speaker != User {
		t.Errorf("first message not a finalized USER entry: %+v", msgs[0])
	}
	if msgs[1].Final || msgs[1].Speaker != AI {
		t.Errorf("second message should be in-progress AI: %+v", msgs[1])
	}
}

func TestSnapshotExcludesInProgress(t *testing.T) {
	tr := New()
	tr.AppendFragment(User, "done")
	tr.CompleteTurn()
	tr.AppendFragment(AI, "thinking")

	snap := tr.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot has %d messages, want 1", len(snap))
	}
	if snap[0].Speaker != User {
		t.Errorf("snapshot[0].Speaker = %s, want USER", snap[0].Speaker)
	}
}

func TestCompleteTurnIdempotent(t *testing.T) {
	tr := New()
	tr.AppendFragment(User, "hi")
	tr.CompleteTurn()
	tr.CompleteTurn()
	if n := len(tr.Snapshot()); n != 1 {
		t.Errorf("got %d messages, want 1", n)
	}
}
