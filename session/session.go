// Package session orchestrates one live mock interview: it owns the capture
// device, the playback pipeline, the backend stream, and the transcript, and
// walks the session through its lifecycle states. All resources acquired at
// Start are released exactly once, in dependency order, by End or Dispose.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rehearse/audio"
	"rehearse/codec"
	"rehearse/gemini"
	"rehearse/interview"
	"rehearse/log"
	"rehearse/report"
	"rehearse/transcript"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateListening
	StateProcessing
	StateEnding
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateEnding:
		return "ending"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Mode selects how the candidate talks to the interviewer.
type Mode string

const (
	// ModeVoice keeps one full-duplex audio stream open for the whole
	// interview; the AI speaks its replies.
	ModeVoice Mode = "voice"
	// ModePushToTalk records one utterance per explicit press, transcribes
	// it, and answers over a streamed text exchange.
	ModePushToTalk Mode = "push-to-talk"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeVoice, ModePushToTalk:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (valid: voice, push-to-talk)", s)
}

// Update is the tagged union of orchestrator notifications delivered on
// Updates. Delivery is best effort; every TranscriptUpdate carries the full
// current view, so a dropped intermediate update is recovered by the next.
type Update interface{ sessionUpdate() }

type StateUpdate struct{ State State }

type TranscriptUpdate struct{ Messages []transcript.Message }

type ErrorUpdate struct{ Err error }

func (StateUpdate) sessionUpdate()      {}
func (TranscriptUpdate) sessionUpdate() {}
func (ErrorUpdate) sessionUpdate()      {}

const (
	chunkMs    = 200
	chunkBytes = codec.InputRate * codec.Channels * (codec.BitsPerSample / 8) * chunkMs / 1000

	turnDrainMax = 2 * time.Second
)

type Config struct {
	Mode      Mode
	Interview interview.Config
	Audio     audio.Context
	// Device selects the capture device; nil means system default.
	Device   *audio.DeviceInfo
	Backend  Backend
	Chat     Chat // required for push-to-talk
	Reporter report.Generator
	// Now is the playback clock in seconds; defaults to wall time.
	Now func() float64
}

// Orchestrator drives one interview session from Start to End or Dispose. A
// single Orchestrator serves a single session; build a new one to start over.
type Orchestrator struct {
	mode         Mode
	interview    interview.Config
	systemPrompt string
	audioCtx     audio.Context
	device       *audio.DeviceInfo
	backend      Backend
	chat         Chat
	reporter     report.Generator

	capture audio.CaptureDevice
	player  audio.Player
	sched   *audio.Scheduler

	tr *transcript.Transcript

	audioCh chan string
	updates chan Update
	quit    chan struct{}

	muted atomic.Bool

	feedMu  sync.Mutex
	feedBuf []byte

	mu        sync.Mutex
	state     State
	stream    LiveStream
	err       error
	closing   bool
	recording bool
	turnStop  chan struct{}
	turnSent  chan struct{}
	turnRecv  chan struct{}

	errOnce      sync.Once
	teardownOnce sync.Once
	endOnce      sync.Once
	finalReport  *report.Feedback
	finalErr     error
	disposed     bool

	startedAt time.Time
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Audio == nil {
		return nil, fmt.Errorf("session: audio context is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("session: backend is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeVoice
	}
	if cfg.Mode == ModePushToTalk && cfg.Chat == nil {
		return nil, fmt.Errorf("session: push-to-talk mode requires a chat backend")
	}
	now := cfg.Now
	if now == nil {
		now = func() float64 { return float64(time.Now().UnixNano()) / 1e9 }
	}
	return &Orchestrator{
		mode:         cfg.Mode,
		interview:    cfg.Interview,
		systemPrompt: interview.SystemPrompt(cfg.Interview),
		audioCtx:     cfg.Audio,
		device:       cfg.Device,
		backend:      cfg.Backend,
		chat:         cfg.Chat,
		reporter:     cfg.Reporter,
		sched:        audio.NewScheduler(now),
		tr:           transcript.New(),
		audioCh:      make(chan string, 128),
		updates:      make(chan Update, 64),
		quit:         make(chan struct{}),
		state:        StateIdle,
	}, nil
}

// Updates delivers lifecycle and transcript notifications. The channel is
// never closed; stop reading once a Terminated state arrives.
func (o *Orchestrator) Updates() <-chan Update { return o.updates }

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Mode() Mode { return o.mode }

// Transcript returns the current view including any in-progress tail.
func (o *Orchestrator) Transcript() []transcript.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tr.Messages()
}

// Start acquires the capture device, opens the backend stream for voice mode,
// and begins listening. On any failure everything already acquired is
// released and the orchestrator is unusable.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return fmt.Errorf("session: already started")
	}
	o.state = StateConnecting
	o.mu.Unlock()
	o.emit(StateUpdate{State: StateConnecting})

	capture, err := o.audioCtx.NewCapture(o.device, audio.CaptureConfig{
		SampleRate:   codec.InputRate,
		Channels:     codec.Channels,
		FrameSamples: codec.FrameSamples,
	})
	if err != nil {
		o.setState(StateTerminated)
		return err
	}
	o.capture = capture

	if o.mode == ModeVoice {
		player, err := o.audioCtx.NewPlayer(codec.OutputRate)
		if err != nil {
			capture.Close()
			o.capture = nil
			o.setState(StateTerminated)
			return err
		}
		o.player = player

		stream, err := o.backend.Dial(ctx, gemini.LiveConfig{SystemPrompt: o.systemPrompt})
		if err != nil {
			player.Close()
			capture.Close()
			o.capture = nil
			o.player = nil
			o.setState(StateTerminated)
			return err
		}
		o.mu.Lock()
		o.stream = stream
		o.mu.Unlock()
		go o.runSender(stream)
		go o.runReceiver(stream)
	}

	capture.SetCallback(o.submitFrame)
	if err := capture.Start(); err != nil {
		o.teardown()
		o.setState(StateTerminated)
		return &audio.DeviceError{Err: err}
	}

	o.startedAt = time.Now()
	log.SessionStart(string(o.mode), string(o.interview.Category))
	o.setState(StateListening)
	return nil
}

// submitFrame runs on the capture device thread. It converts and chunks the
// frame, then hands chunks off without blocking; a full queue drops the chunk
// rather than stalling the device.
func (o *Orchestrator) submitFrame(samples []float32) {
	if o.muted.Load() || !o.accepting() {
		return
	}
	pcm := codec.Float32ToPCM16(samples)

	o.feedMu.Lock()
	o.feedBuf = append(o.feedBuf, pcm...)
	var chunks []string
	for len(o.feedBuf) >= chunkBytes {
		chunks = append(chunks, codec.EncodeBase64(o.feedBuf[:chunkBytes]))
		o.feedBuf = o.feedBuf[chunkBytes:]
	}
	o.feedMu.Unlock()

	for _, chunk := range chunks {
		select {
		case o.audioCh <- chunk:
		default:
		}
	}
}

func (o *Orchestrator) accepting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mode == ModePushToTalk {
		return o.recording
	}
	return o.state == StateListening || o.state == StateProcessing
}

func (o *Orchestrator) Mute()       { o.muted.Store(true) }
func (o *Orchestrator) Unmute()     { o.muted.Store(false) }
func (o *Orchestrator) Muted() bool { return o.muted.Load() }

func (o *Orchestrator) runSender(stream LiveStream) {
	for {
		select {
		case chunk := <-o.audioCh:
			if err := stream.SendAudio(chunk); err != nil {
				o.fail(err)
				return
			}
		case <-o.quit:
			return
		}
	}
}

func (o *Orchestrator) runReceiver(stream LiveStream) {
	for {
		ev, err := stream.Recv()
		if err != nil {
			o.mu.Lock()
			closing := o.closing
			o.mu.Unlock()
			if closing {
				return
			}
			o.fail(err)
			return
		}
		o.handleEvent(ev)
	}
}

// handleEvent applies one inbound stream event. Fragments grow the
// transcript; audio is placed on the scheduler's timeline and queued to the
// player, whose FIFO drain keeps clips in order; turn completion freezes the
// in-progress message and returns to listening.
func (o *Orchestrator) handleEvent(ev gemini.Event) {
	switch e := ev.(type) {
	case gemini.Fragment:
		o.mu.Lock()
		speaker := transcript.User
		if e.Source == gemini.SourceModel {
			speaker = transcript.AI
			if o.state == StateListening {
				o.state = StateProcessing
				defer o.emit(StateUpdate{State: StateProcessing})
			}
		}
		o.tr.AppendFragment(speaker, e.Text)
		msgs := o.tr.Messages()
		o.mu.Unlock()
		o.emit(TranscriptUpdate{Messages: msgs})

	case gemini.Audio:
		o.mu.Lock()
		o.sched.Schedule(codec.PCM16Duration(e.PCM, codec.OutputRate, codec.Channels))
		player := o.player
		o.mu.Unlock()
		if player != nil {
			player.Play(e.PCM)
		}

	case gemini.TurnComplete:
		o.mu.Lock()
		o.tr.CompleteTurn()
		if n := o.tr.Len(); n > 0 {
			last := o.tr.Messages()[n-1]
			log.TurnComplete(string(last.Speaker), len(last.Text))
		}
		if o.state == StateProcessing {
			o.state = StateListening
			defer o.emit(StateUpdate{State: StateListening})
		}
		msgs := o.tr.Messages()
		o.mu.Unlock()
		o.emit(TranscriptUpdate{Messages: msgs})
	}
}

// End finishes the interview: releases every resource, finalizes the
// transcript, and generates the feedback report. Safe to call more than
// once; later calls return the first result.
func (o *Orchestrator) End(ctx context.Context) (*report.Feedback, error) {
	o.endOnce.Do(func() {
		o.finalReport, o.finalErr = o.finish(ctx)
	})
	return o.finalReport, o.finalErr
}

func (o *Orchestrator) finish(ctx context.Context) (*report.Feedback, error) {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return nil, nil
	}
	o.state = StateEnding
	o.mu.Unlock()
	o.emit(StateUpdate{State: StateEnding})

	o.teardown()

	o.mu.Lock()
	o.tr.CompleteTurn()
	messages := o.tr.Snapshot()
	o.mu.Unlock()

	log.SessionEnd(len(messages), time.Since(o.startedAt))
	for _, m := range messages {
		log.TranscriptLine(string(m.Speaker), m.Text)
	}

	var fb *report.Feedback
	var err error
	if o.reporter != nil && len(messages) > 0 {
		genStart := time.Now()
		fb, err = o.reporter.Generate(ctx, o.interview, messages)
		if err == nil {
			log.ReportGenerated(fb.OverallScore, time.Since(genStart))
		} else {
			log.Errorf("report generation failed: %v", err)
		}
	}

	o.setState(StateTerminated)
	return fb, err
}

// Dispose abandons the session without a report. Idempotent, and shares the
// resource release with End so calling both tears down exactly once.
func (o *Orchestrator) Dispose() {
	o.mu.Lock()
	o.disposed = true
	o.mu.Unlock()
	o.teardown()
	o.setState(StateTerminated)
}

// teardown releases resources in dependency order: capture stops before its
// callback is detached and closed, playback stops before the player closes,
// and the backend connection goes last.
func (o *Orchestrator) teardown() {
	o.teardownOnce.Do(func() {
		o.mu.Lock()
		o.closing = true
		stream := o.stream
		o.mu.Unlock()

		close(o.quit)

		if o.capture != nil {
			o.capture.Stop()
			o.capture.ClearCallback()
			o.capture.Close()
		}
		if o.player != nil {
			o.mu.Lock()
			pending := o.sched.Remaining()
			o.mu.Unlock()
			if pending > 0 {
				log.Info(fmt.Sprintf("discarding %.1fs of scheduled playback", pending))
			}
			o.player.StopAll()
			o.player.Close()
		}
		o.mu.Lock()
		o.sched.Reset()
		o.mu.Unlock()
		if stream != nil {
			stream.Close()
		}
	})
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	changed := o.state != s
	o.state = s
	o.mu.Unlock()
	if changed {
		o.emit(StateUpdate{State: s})
	}
}

// fail records the first error and surfaces it. The session does not
// reconnect; the caller decides whether to Dispose or End.
func (o *Orchestrator) fail(err error) {
	if err == nil {
		return
	}
	o.mu.Lock()
	closing := o.closing
	o.mu.Unlock()
	if closing {
		return
	}
	o.errOnce.Do(func() {
		o.mu.Lock()
		o.err = err
		o.mu.Unlock()
		log.Errorf("session error: %v", err)
		o.emit(ErrorUpdate{Err: err})
	})
}

// Err returns the first stream error, if any.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

func (o *Orchestrator) emit(u Update) {
	select {
	case o.updates <- u:
	default:
	}
}
