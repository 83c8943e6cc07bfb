package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func TestBase64RoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		{0},
		{0xff},
		{0, 1, 2, 3, 4, 5},
		bytes.Repeat([]byte{0xab, 0x00, 0x7f}, 1000),
	}
	// every byte value once
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	cases = append(cases, all)

	for _, b := range cases {
		got, err := DecodeBase64(EncodeBase64(b))
		if err != nil {
			t.Fatalf("DecodeBase64: %v", err)
		}
		if !bytes.Equal(got, b) {
			t.Errorf("round trip mismatch: in %d bytes, out %d bytes", len(b), len(got))
		}
	}
}

func TestFloat32ToPCM16Clamps(t *testing.T) {
	pcm := Float32ToPCM16([]float32{0, 1, -1, 2, -2, 0.5})
	want := []int16{0, 32767, -32767, 32767, -32767, 16383}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestDecodePCM16Formula(t *testing.T) {
	// interleaved stereo: [100, 200, 300, 400, 500, 600]
	samples := []int16{100, 200, 300, 400, 500, 600}
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	out := DecodePCM16(data, 2)
	if len(out) != 2 {
		t.Fatalf("channels = %d, want 2", len(out))
	}
	if len(out[0]) != 3 || len(out[1]) != 3 {
		t.Fatalf("frames = %d/%d, want 3/3", len(out[0]), len(out[1]))
	}
	for c := 0; c < 2; c++ {
		for i := 0; i < 3; i++ {
			want := float32(samples[i*2+c]) / 32768.0
			if math.Abs(float64(out[c][i]-want)) > 1e-9 {
				t.Errorf("[%d][%d] = %v, want %v", c, i, out[c][i], want)
			}
		}
	}
}

func TestDecodePCM16DropsPartialFrame(t *testing.T) {
	// 5 samples over 2 channels: 2 full frames, 1 sample dropped
	data := make([]byte, 5*2)
	out := DecodePCM16(data, 2)
	if len(out[0]) != 2 {
		t.Errorf("frames = %d, want 2", len(out[0]))
	}

	// odd byte ignored entirely
	out = DecodePCM16([]byte{0x01}, 1)
	if len(out[0]) != 0 {
		t.Errorf("frames = %d, want 0", len(out[0]))
	}
}

func TestPCM16Duration(t *testing.T) {
	// one second of 24kHz mono PCM16
	data := make([]byte, OutputRate*2)
	if d := PCM16Duration(data, OutputRate, 1); d != 1.0 {
		t.Errorf("duration = %v, want 1.0", d)
	}
	if d := PCM16Duration(nil, OutputRate, 1); d != 0 {
		t.Errorf("duration = %v, want 0", d)
	}
}
