package audio

import "sync"

// FakeContext provides in-memory capture and playback for tests. Frames are
// pushed from the test through FakeCapture.Push.
type FakeContext struct {
	Capture *FakeCapture
	Player  *FakePlayer

	// CaptureErr, when set, makes NewCapture fail the way a denied
	// microphone does.
	CaptureErr error
}

func NewFakeContext() *FakeContext {
	return &FakeContext{
		Capture: &FakeCapture{},
		Player:  &FakePlayer{},
	}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	if f.CaptureErr != nil {
		return nil, &DeviceError{Err: f.CaptureErr}
	}
	return f.Capture, nil
}

func (f *FakeContext) NewPlayer(_ uint32) (Player, error) {
	return f.Player, nil
}

func (f *FakeContext) Close() {}

type FakeCapture struct {
	mu      sync.Mutex
	cb      FrameCallback
	started bool
	stops   int
	closes  int
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		f.started = false
		f.stops++
	}
}

func (f *FakeCapture) Close() {
	f.Stop()
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
}

func (f *FakeCapture) SetCallback(cb FrameCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

// Push feeds one frame through the registered callback, standing in for the
// device thread.
func (f *FakeCapture) Push(samples []float32) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(samples)
	}
}

func (f *FakeCapture) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *FakeCapture) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type FakePlayer struct {
	mu       sync.Mutex
	played   [][]byte
	stopAlls int
	closed   bool
}

func (p *FakePlayer) Play(pcm []byte) {
	p.mu.Lock()
	clip := make([]byte, len(pcm))
	copy(clip, pcm)
	p.played = append(p.played, clip)
	p.mu.Unlock()
}

func (p *FakePlayer) StopAll() {
	p.mu.Lock()
	p.stopAlls++
	p.played = nil
	p.mu.Unlock()
}

func (p *FakePlayer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *FakePlayer) Played() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.played))
	copy(out, p.played)
	return out
}

func (p *FakePlayer) StopAllCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopAlls
}

func (p *FakePlayer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
