package session

import (
	"context"

	"rehearse/gemini"
)

// LiveStream is one open bidirectional audio stream. Satisfied by
// *gemini.LiveSession; tests substitute a scripted fake.
type LiveStream interface {
	SendAudio(b64 string) error
	// CloseSend marks the end of outbound audio; the receive side stays
	// open so the server can finish the turn.
	CloseSend() error
	Recv() (gemini.Event, error)
	Close() error
}

// Backend opens live streams.
type Backend interface {
	Dial(ctx context.Context, cfg gemini.LiveConfig) (LiveStream, error)
}

// Reply is the lazy fragment sequence of one text-mode answer. Satisfied by
// *gemini.TextStream.
type Reply interface {
	Fragments() <-chan string
	Err() error
}

// Chat performs one turn-based text exchange.
type Chat interface {
	Stream(ctx context.Context, systemPrompt string, history []gemini.Turn, msg string) (Reply, error)
}

// GeminiBackend adapts the concrete client to the Backend interface.
type GeminiBackend struct {
	Client *gemini.Client
}

func (b GeminiBackend) Dial(ctx context.Context, cfg gemini.LiveConfig) (LiveStream, error) {
	return b.Client.Dial(ctx, cfg)
}

// GeminiChat adapts the concrete client to the Chat interface.
type GeminiChat struct {
	Client *gemini.Client
}

func (c GeminiChat) Stream(ctx context.Context, systemPrompt string, history []gemini.Turn, msg string) (Reply, error) {
	return c.Client.StreamMessage(ctx, systemPrompt, history, msg)
}
