// Package audio abstracts microphone capture and speaker playback for the
// live session. The orchestrator owns one capture device and one player per
// session and releases both during teardown.
package audio

import "fmt"

// FrameCallback receives one capture buffer of normalized mono samples in
// [-1, 1]. It runs on the device thread and must not block.
type FrameCallback func(samples []float32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	// FrameSamples is the capture buffer size in samples per callback.
	FrameSamples uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	NewPlayer(sampleRate uint32) (Player, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb FrameCallback)
	ClearCallback()
}

// Player consumes raw PCM16 clips strictly in the order they are queued.
// StopAll discards everything queued or playing; the session calls it during
// teardown so remote audio never outlives the interview.
type Player interface {
	Play(pcm []byte)
	StopAll()
	Close()
}

// DeviceError marks microphone access failures: the session attempt is over
// and the user has to retry.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device unavailable: %v", e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
