package session

import (
	"context"
	"testing"
	"time"

	"rehearse/audio"
	"rehearse/codec"
	"rehearse/gemini"
	"rehearse/interview"
	"rehearse/transcript"
)

type textFixture struct {
	orch    *Orchestrator
	ctx     *audio.FakeContext
	backend *FakeBackend
	chat    *FakeChat
}

func newTextFixture(t *testing.T, streams []*FakeStream, chat *FakeChat) *textFixture {
	t.Helper()
	f := &textFixture{
		ctx:     audio.NewFakeContext(),
		backend: NewFakeBackend(streams...),
		chat:    chat,
	}
	orch, err := New(Config{
		Mode:      ModePushToTalk,
		Interview: interview.Config{Category: interview.Technical},
		Audio:     f.ctx,
		Backend:   f.backend,
		Chat:      chat,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.orch = orch
	t.Cleanup(f.orch.Dispose)
	return f
}

func TestPushToTalkRequiresChat(t *testing.T) {
	_, err := New(Config{
		Mode:    ModePushToTalk,
		Audio:   audio.NewFakeContext(),
		Backend: NewFakeBackend(),
	})
	if err == nil {
		t.Error("push-to-talk accepted without chat backend")
	}
}

func TestPushToTalkTurn(t *testing.T) {
	stream := NewFakeStream()
	chat := NewFakeChat(NewFakeReply("Interesting. ", "What was the hardest part?"))
	f := newTextFixture(t, []*FakeStream{stream}, chat)

	if err := f.orch.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.backend.Dials() != 0 {
		t.Errorf("dials at start = %d, want 0", f.backend.Dials())
	}

	if err := f.orch.BeginTurn(context.Background()); err != nil {
		t.Fatalf("BeginTurn: %v", err)
	}
	cfgs := f.backend.Configs()
	if len(cfgs) != 1 || !cfgs[0].TranscribeOnly {
		t.Errorf("dial configs = %+v, want one transcribe-only", cfgs)
	}

	f.ctx.Capture.Push(make([]float32, codec.FrameSamples))
	waitFor(t, "utterance audio sent", func() bool { return len(stream.Sent()) >= 1 })

	stream.Emit(gemini.Fragment{Source: gemini.SourceUser, Text: "I rewrote the scheduler."})
	waitFor(t, "user fragment", func() bool { return len(f.orch.Transcript()) == 1 })

	if err := f.orch.EndTurn(context.Background()); err != nil {
		t.Fatalf("EndTurn: %v", err)
	}
	if stream.CloseCount() == 0 {
		t.Error("utterance stream not closed")
	}
	if stream.CloseSendCount() != 1 {
		t.Errorf("end-of-audio signals = %d, want 1", stream.CloseSendCount())
	}
	if got := len(stream.Sent()); got != 2 {
		t.Errorf("chunks sent = %d, want buffered tail flushed before end of audio", got)
	}

	waitFor(t, "reply finished", func() bool { return f.orch.State() == StateListening })

	msgs := f.orch.Transcript()
	if len(msgs) != 2 {
		t.Fatalf("transcript = %+v", msgs)
	}
	if msgs[0].Speaker != transcript.User || !msgs[0].Final {
		t.Errorf("message 0 = %+v", msgs[0])
	}
	if msgs[1].Speaker != transcript.AI || msgs[1].Text != "Interesting. What was the hardest part?" || !msgs[1].Final {
		t.Errorf("message 1 = %+v", msgs[1])
	}

	calls := chat.Calls()
	if len(calls) != 1 || calls[0].Msg != "I rewrote the scheduler." {
		t.Errorf("chat calls = %+v", calls)
	}
	if len(calls[0].History) != 0 {
		t.Errorf("first turn history = %+v, want empty", calls[0].History)
	}
}

func TestEndTurnKeepsLateFragments(t *testing.T) {
	stream := NewFakeStream()
	chat := NewFakeChat(NewFakeReply("Noted."))
	f := newTextFixture(t, []*FakeStream{stream}, chat)

	if err := f.orch.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.orch.BeginTurn(context.Background()); err != nil {
		t.Fatal(err)
	}

	// transcription still in flight when the press is released; EndTurn must
	// let the server finish the turn before the stream closes
	stream.Emit(gemini.Fragment{Source: gemini.SourceUser, Text: "It was "})
	stream.Emit(gemini.Fragment{Source: gemini.SourceUser, Text: "a race condition."})
	if err := f.orch.EndTurn(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "reply finished", func() bool { return f.orch.State() == StateListening })

	msgs := f.orch.Transcript()
	if len(msgs) == 0 || msgs[0].Text != "It was a race condition." {
		t.Fatalf("transcript = %+v", msgs)
	}
	calls := chat.Calls()
	if len(calls) != 1 || calls[0].Msg != "It was a race condition." {
		t.Errorf("chat calls = %+v", calls)
	}
}

func TestSingleOutstandingExchange(t *testing.T) {
	stream1 := NewFakeStream()
	stream2 := NewFakeStream()
	reply := NewManualReply()
	chat := NewFakeChat(reply)
	f := newTextFixture(t, []*FakeStream{stream1, stream2}, chat)

	if err := f.orch.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.orch.BeginTurn(context.Background()); err != nil {
		t.Fatal(err)
	}
	stream1.Emit(gemini.Fragment{Source: gemini.SourceUser, Text: "My answer."})
	waitFor(t, "fragment", func() bool { return len(f.orch.Transcript()) == 1 })
	if err := f.orch.EndTurn(context.Background()); err != nil {
		t.Fatal(err)
	}

	// the reply is still streaming
	if err := f.orch.BeginTurn(context.Background()); err == nil {
		t.Error("BeginTurn accepted while a reply is in flight")
	}

	reply.Push("Got it.")
	reply.Finish(nil)
	waitFor(t, "listening again", func() bool { return f.orch.State() == StateListening })

	if err := f.orch.BeginTurn(context.Background()); err != nil {
		t.Errorf("BeginTurn after reply: %v", err)
	}
}

func TestEmptyUtteranceSkipsExchange(t *testing.T) {
	stream := NewFakeStream()
	chat := NewFakeChat()
	f := newTextFixture(t, []*FakeStream{stream}, chat)

	if err := f.orch.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.orch.BeginTurn(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.orch.EndTurn(context.Background()); err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := len(chat.Calls()); got != 0 {
		t.Errorf("chat called %d times for an empty utterance", got)
	}
	if f.orch.State() != StateListening {
		t.Errorf("state = %s, want listening", f.orch.State())
	}
	if len(f.orch.Transcript()) != 0 {
		t.Errorf("transcript = %+v, want empty", f.orch.Transcript())
	}
}

func TestEndTurnWithoutBeginIsNoop(t *testing.T) {
	f := newTextFixture(t, nil, NewFakeChat())
	if err := f.orch.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.orch.EndTurn(context.Background()); err != nil {
		t.Errorf("EndTurn: %v", err)
	}
}

func TestSecondTurnCarriesHistory(t *testing.T) {
	stream1 := NewFakeStream()
	stream2 := NewFakeStream()
	chat := NewFakeChat(NewFakeReply("Why?"), NewFakeReply("Good."))
	f := newTextFixture(t, []*FakeStream{stream1, stream2}, chat)

	if err := f.orch.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := f.orch.BeginTurn(context.Background()); err != nil {
		t.Fatal(err)
	}
	stream1.Emit(gemini.Fragment{Source: gemini.SourceUser, Text: "I chose Go."})
	waitFor(t, "first fragment", func() bool { return len(f.orch.Transcript()) == 1 })
	if err := f.orch.EndTurn(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first reply", func() bool { return f.orch.State() == StateListening })

	if err := f.orch.BeginTurn(context.Background()); err != nil {
		t.Fatal(err)
	}
	stream2.Emit(gemini.Fragment{Source: gemini.SourceUser, Text: "For the concurrency model."})
	waitFor(t, "second fragment", func() bool { return len(f.orch.Transcript()) == 3 })
	if err := f.orch.EndTurn(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "second reply", func() bool { return f.orch.State() == StateListening && len(f.orch.Transcript()) == 4 })

	calls := chat.Calls()
	if len(calls) != 2 {
		t.Fatalf("chat calls = %d, want 2", len(calls))
	}
	history := calls[1].History
	if len(history) != 2 {
		t.Fatalf("history = %+v, want 2 turns", history)
	}
	if history[0].Role != "user" || history[0].Text != "I chose Go." {
		t.Errorf("history[0] = %+v", history[0])
	}
	if history[1].Role != "model" || history[1].Text != "Why?" {
		t.Errorf("history[1] = %+v", history[1])
	}
}
