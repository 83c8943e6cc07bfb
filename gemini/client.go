// Package gemini is the client for the hosted conversational backend. It
// carries three surfaces: the bidirectional live audio stream, the turn-based
// streaming text exchange, and single-shot structured generation used for
// feedback reports.
package gemini

import (
	"fmt"
	"net/http"
	"os"
	"time"
)

const (
	defaultHost      = "generativelanguage.googleapis.com"
	defaultLiveModel = "models/gemini-2.0-flash-live-001"
	defaultTextModel = "models/gemini-2.0-flash"

	// wire format fixed by the live protocol
	inputMimeType = "audio/pcm;rate=16000"
)

type Config struct {
	APIKey    string
	Host      string // override for tests
	Insecure  bool   // plain ws/http against a test host
	LiveModel string
	TextModel string
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.LiveModel == "" {
		cfg.LiveModel = defaultLiveModel
	}
	if cfg.TextModel == "" {
		cfg.TextModel = defaultTextModel
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        1,
				MaxIdleConnsPerHost: 1,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}, nil
}

// New builds a client from the environment.
func New() (*Client, error) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("set GEMINI_API_KEY environment variable")
	}
	return NewClient(Config{APIKey: key})
}

// ConnectionError marks stream open or transport failures. The session ends;
// there is no automatic reconnect.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("gemini connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
