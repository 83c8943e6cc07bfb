package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"nhooyr.io/websocket"

	"rehearse/codec"
)

// Source tags which side of the conversation a transcription fragment
// belongs to.
type Source string

const (
	SourceUser  Source = "user"
	SourceModel Source = "model"
)

// Event is the tagged union of inbound live-stream messages. Exactly one
// concrete type arrives per Recv call.
type Event interface{ event() }

// Fragment is an incremental piece of transcription text for the speaker
// identified by Source.
type Fragment struct {
	Source Source
	Text   string
}

// TurnComplete signals that the server considers the current exchange
// finished; in-progress transcript entries should be finalized.
type TurnComplete struct{}

// Audio carries decoded remote speech: raw PCM16 mono at 24 kHz.
type Audio struct {
	PCM []byte
}

func (Fragment) event()     {}
func (TurnComplete) event() {}
func (Audio) event()        {}

// LiveConfig parameterizes one live connection.
type LiveConfig struct {
	SystemPrompt string
	// TranscribeOnly suppresses spoken replies; used by push-to-talk mode
	// where the AI answers over the text exchange instead.
	TranscribeOnly bool
}

// LiveSession is one open bidirectional stream. It is owned exclusively by
// the session orchestrator from Dial until Close.
type LiveSession struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	pending []Event
}

// Dial opens the stream, sends the setup message carrying the system
// instruction, and waits for the server's setup acknowledgment. ctx bounds
// the dial and handshake only; the session itself lives until Close, so
// callers may release their dial context as soon as Dial returns.
func (c *Client) Dial(ctx context.Context, cfg LiveConfig) (*LiveSession, error) {
	scheme := "wss"
	if c.cfg.Insecure {
		scheme = "ws"
	}
	endpoint := url.URL{
		Scheme:   scheme,
		Host:     c.cfg.Host,
		Path:     "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent",
		RawQuery: url.Values{"key": {c.cfg.APIKey}}.Encode(),
	}

	conn, _, err := websocket.Dial(ctx, endpoint.String(), nil)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Err: err}
	}
	// audio payloads are large relative to the default limit
	conn.SetReadLimit(1 << 22)

	streamCtx, cancel := context.WithCancel(context.Background())
	s := &LiveSession{conn: conn, ctx: streamCtx, cancel: cancel}

	modalities := []string{"AUDIO"}
	if cfg.TranscribeOnly {
		modalities = []string{"TEXT"}
	}
	setup := setupMessage{}
	setup.Setup.Model = c.cfg.LiveModel
	setup.Setup.GenerationConfig.ResponseModalities = modalities
	setup.Setup.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemPrompt}}}
	setup.Setup.InputAudioTranscription = &struct{}{}
	if !cfg.TranscribeOnly {
		setup.Setup.OutputAudioTranscription = &struct{}{}
	}
	if err := s.writeJSON(setup); err != nil {
		s.Close()
		return nil, &ConnectionError{Op: "setup", Err: err}
	}

	// handshake: the first server message acknowledges setup
	var ack serverMessage
	if err := s.readJSON(&ack); err != nil {
		s.Close()
		return nil, &ConnectionError{Op: "handshake", Err: err}
	}
	if ack.SetupComplete == nil {
		s.Close()
		return nil, &ConnectionError{Op: "handshake", Err: fmt.Errorf("unexpected first message")}
	}
	return s, nil
}

// SendAudio forwards one base64-encoded PCM16@16kHz mono chunk.
func (s *LiveSession) SendAudio(b64 string) error {
	msg := realtimeInputMessage{}
	msg.RealtimeInput.MediaChunks = []mediaChunk{{MimeType: inputMimeType, Data: b64}}
	if err := s.writeJSON(msg); err != nil {
		return &ConnectionError{Op: "send", Err: err}
	}
	return nil
}

// CloseSend signals that no further audio follows for the current utterance.
// The server finishes transcribing the buffered tail and completes the turn;
// the receive side of the stream stays usable until Close.
func (s *LiveSession) CloseSend() error {
	msg := audioStreamEndMessage{}
	msg.RealtimeInput.AudioStreamEnd = true
	if err := s.writeJSON(msg); err != nil {
		return &ConnectionError{Op: "close-send", Err: err}
	}
	return nil
}

// Recv returns the next inbound event, reading further stream messages as
// needed. A single wire message may decode to several events; they are
// delivered one at a time in emission order.
func (s *LiveSession) Recv() (Event, error) {
	for len(s.pending) == 0 {
		var msg serverMessage
		if err := s.readJSON(&msg); err != nil {
			return nil, &ConnectionError{Op: "recv", Err: err}
		}
		events, err := msg.events()
		if err != nil {
			return nil, err
		}
		s.pending = events
	}
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev, nil
}

func (s *LiveSession) Close() error {
	s.cancel()
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

func (s *LiveSession) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.conn.Write(s.ctx, websocket.MessageText, data)
}

func (s *LiveSession) readJSON(v any) error {
	_, data, err := s.conn.Read(s.ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// wire shapes

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type mediaChunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type setupMessage struct {
	Setup struct {
		Model            string `json:"model"`
		GenerationConfig struct {
			ResponseModalities []string `json:"responseModalities"`
		} `json:"generationConfig"`
		SystemInstruction        *content  `json:"systemInstruction,omitempty"`
		InputAudioTranscription  *struct{} `json:"inputAudioTranscription,omitempty"`
		OutputAudioTranscription *struct{} `json:"outputAudioTranscription,omitempty"`
	} `json:"setup"`
}

type realtimeInputMessage struct {
	RealtimeInput struct {
		MediaChunks []mediaChunk `json:"mediaChunks"`
	} `json:"realtimeInput"`
}

type audioStreamEndMessage struct {
	RealtimeInput struct {
		AudioStreamEnd bool `json:"audioStreamEnd"`
	} `json:"realtimeInput"`
}

type serverMessage struct {
	SetupComplete *struct{} `json:"setupComplete"`
	ServerContent *struct {
		ModelTurn *struct {
			Parts []part `json:"parts"`
		} `json:"modelTurn"`
		InputTranscription *struct {
			Text string `json:"text"`
		} `json:"inputTranscription"`
		OutputTranscription *struct {
			Text string `json:"text"`
		} `json:"outputTranscription"`
		TurnComplete bool `json:"turnComplete"`
	} `json:"serverContent"`
}

// events resolves one wire message into its ordered event sequence:
// transcription fragments first, then audio payloads, then turn completion.
func (m serverMessage) events() ([]Event, error) {
	sc := m.ServerContent
	if sc == nil {
		return nil, nil
	}
	var out []Event
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		out = append(out, Fragment{Source: SourceUser, Text: sc.InputTranscription.Text})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		out = append(out, Fragment{Source: SourceModel, Text: sc.OutputTranscription.Text})
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.Text != "" {
				out = append(out, Fragment{Source: SourceModel, Text: p.Text})
			}
			if p.InlineData != nil {
				pcm, err := codec.DecodeBase64(p.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("decoding audio payload: %w", err)
				}
				out = append(out, Audio{PCM: pcm})
			}
		}
	}
	if sc.TurnComplete {
		out = append(out, TurnComplete{})
	}
	return out, nil
}
