package speech

import (
	"encoding/binary"
	"time"
)

const (
	SampleRate = 24000
	Channels   = 1
)

// Buffer is decoded 16-bit PCM audio ready for playback.
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Decode interprets raw synthesized audio as little-endian 16-bit mono PCM
// at 24 kHz. An odd trailing byte is dropped.
func Decode(raw []byte) *Buffer {
	if len(raw)%2 != 0 {
		raw = raw[:len(raw)-1]
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return &Buffer{SampleRate: SampleRate, Channels: Channels, Samples: samples}
}

func (b *Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}
