// Package codec holds the pure audio conversions used on both sides of the
// live session: capture frames out (float32 -> PCM16 -> base64) and remote
// audio in (base64 -> PCM16 -> float32 channels).
package codec

import (
	"encoding/base64"
	"encoding/binary"
)

const (
	InputRate     = 16000 // capture / outbound sample rate
	OutputRate    = 24000 // remote audio payload sample rate
	Channels      = 1
	BitsPerSample = 16
	FrameSamples  = 4096 // samples per capture callback
)

func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// Float32ToPCM16 converts normalized samples to little-endian 16-bit PCM.
// Input values outside [-1, 1] are clamped.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodePCM16 expands little-endian 16-bit PCM into per-channel normalized
// float32 buffers: sample i of channel c is int16[i*channels+c]/32768.
// A trailing partial frame (fewer bytes than one full multi-channel sample
// group) is dropped; that is defined behavior, not an error.
func DecodePCM16(data []byte, channels int) [][]float32 {
	if channels < 1 {
		channels = 1
	}
	totalSamples := len(data) / 2
	frames := totalSamples / channels

	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			raw := int16(binary.LittleEndian.Uint16(data[(i*channels+c)*2:]))
			out[c][i] = float32(raw) / 32768.0
		}
	}
	return out
}

// PCM16Duration returns the playback length in seconds of raw PCM16 data at
// the given rate.
func PCM16Duration(data []byte, rate, channels int) float64 {
	if rate <= 0 || channels <= 0 {
		return 0
	}
	return float64(len(data)/2/channels) / float64(rate)
}
