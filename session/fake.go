package session

import (
	"context"
	"errors"
	"sync"

	"rehearse/gemini"
)

// FakeStream is a scripted live stream for tests. Events pushed through Emit
// come back out of Recv; Close unblocks any pending Recv.
type FakeStream struct {
	mu         sync.Mutex
	sent       []string
	sendErr    error
	closes     int
	closeSends int
	events     chan gemini.Event
	closed     chan struct{}
	closeOnce  sync.Once
}

func NewFakeStream() *FakeStream {
	return &FakeStream{
		events: make(chan gemini.Event, 64),
		closed: make(chan struct{}),
	}
}

func (s *FakeStream) Emit(ev gemini.Event) { s.events <- ev }

func (s *FakeStream) FailSends(err error) {
	s.mu.Lock()
	s.sendErr = err
	s.mu.Unlock()
}

func (s *FakeStream) SendAudio(b64 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, b64)
	return nil
}

// CloseSend acknowledges the end of input the way the live backend does:
// any events already emitted stay queued ahead of the turn completion.
func (s *FakeStream) CloseSend() error {
	s.mu.Lock()
	s.closeSends++
	err := s.sendErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.events <- gemini.TurnComplete{}
	return nil
}

func (s *FakeStream) Recv() (gemini.Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.closed:
		return nil, errors.New("stream closed")
	}
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *FakeStream) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *FakeStream) CloseSendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeSends
}

func (s *FakeStream) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// FakeBackend hands out scripted streams in order and records dial configs.
type FakeBackend struct {
	mu      sync.Mutex
	streams []*FakeStream
	dialErr error
	dials   int
	configs []gemini.LiveConfig
}

func NewFakeBackend(streams ...*FakeStream) *FakeBackend {
	return &FakeBackend{streams: streams}
}

func (b *FakeBackend) FailDials(err error) {
	b.mu.Lock()
	b.dialErr = err
	b.mu.Unlock()
}

func (b *FakeBackend) Dial(_ context.Context, cfg gemini.LiveConfig) (LiveStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	b.configs = append(b.configs, cfg)
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	if len(b.streams) == 0 {
		return nil, errors.New("fake backend: no stream scripted")
	}
	s := b.streams[0]
	b.streams = b.streams[1:]
	return s, nil
}

func (b *FakeBackend) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *FakeBackend) Configs() []gemini.LiveConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]gemini.LiveConfig, len(b.configs))
	copy(out, b.configs)
	return out
}

// FakeReply is a controllable text-exchange reply.
type FakeReply struct {
	fragments chan string
	err       error
}

// NewFakeReply returns an already-finished reply with the given fragments.
func NewFakeReply(frags ...string) *FakeReply {
	ch := make(chan string, len(frags))
	for _, f := range frags {
		ch <- f
	}
	close(ch)
	return &FakeReply{fragments: ch}
}

// NewManualReply returns an open reply the test drives with Push and Finish.
func NewManualReply() *FakeReply {
	return &FakeReply{fragments: make(chan string, 16)}
}

func (r *FakeReply) Push(frag string) { r.fragments <- frag }

func (r *FakeReply) Finish(err error) {
	r.err = err
	close(r.fragments)
}

func (r *FakeReply) Fragments() <-chan string { return r.fragments }

func (r *FakeReply) Err() error { return r.err }

// ChatCall records one Stream invocation.
type ChatCall struct {
	SystemPrompt string
	History      []gemini.Turn
	Msg          string
}

// FakeChat returns scripted replies in order.
type FakeChat struct {
	mu      sync.Mutex
	replies []*FakeReply
	err     error
	calls   []ChatCall
}

func NewFakeChat(replies ...*FakeReply) *FakeChat {
	return &FakeChat{replies: replies}
}

func (c *FakeChat) FailWith(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *FakeChat) Stream(_ context.Context, systemPrompt string, history []gemini.Turn, msg string) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, ChatCall{SystemPrompt: systemPrompt, History: history, Msg: msg})
	if c.err != nil {
		return nil, c.err
	}
	if len(c.replies) == 0 {
		return NewFakeReply(), nil
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

func (c *FakeChat) Calls() []ChatCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ChatCall, len(c.calls))
	copy(out, c.calls)
	return out
}
