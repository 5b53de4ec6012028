package speech

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

const wavHeaderSize = 44

// WriteWAV encodes the buffer as a canonical PCM WAV file.
func (b *Buffer) WriteWAV(w io.Writer) error {
	const bitsPerSample = 16
	dataSize := uint32(len(b.Samples) * 2)
	blockAlign := uint16(b.Channels * bitsPerSample / 8)
	byteRate := uint32(b.SampleRate) * uint32(blockAlign)

	bw := bufio.NewWriter(w)
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(wavHeaderSize - 8 + dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		uint16(b.Channels),
		uint32(b.SampleRate),
		byteRate,
		blockAlign,
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}
	for _, field := range header {
		if err := binary.Write(bw, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("write wav header: %w", err)
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, b.Samples); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	return bw.Flush()
}

// WAVSize is the encoded size in bytes, for Content-Length.
func (b *Buffer) WAVSize() int {
	return wavHeaderSize + len(b.Samples)*2
}
