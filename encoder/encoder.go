package encoder

import (
	"fmt"
	"io"
	"time"
)

const (
	DefaultSampleRate = 16000
	Channels          = 1
	BitsPerSample     = 16
	BlockSize         = 4096
)

const (
	FormatWAV  = "wav"
	FormatFLAC = "flac"
)

// Encoder turns 16-bit mono PCM blocks into a container file. Blocks must be
// at most BlockSize samples long.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Format() string
	TotalFrames() uint64
	EncodeTime() time.Duration
}

func New(format string, w io.WriteSeeker, sampleRate int) (Encoder, error) {
	switch format {
	case FormatWAV, "":
		return NewWav(w, sampleRate), nil
	case FormatFLAC:
		return NewFlac(w, sampleRate)
	default:
		return nil, fmt.Errorf("unsupported audio format %q", format)
	}
}

func ContentType(format string) string {
	switch format {
	case FormatFLAC:
		return "audio/flac"
	default:
		return "audio/wav"
	}
}
