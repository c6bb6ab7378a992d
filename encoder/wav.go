package encoder

import (
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type WavEncoder struct {
	enc         *wav.Encoder
	format      *audio.Format
	totalFrames uint64
	encodeTime  time.Duration
}

func NewWav(w io.WriteSeeker, sampleRate int) *WavEncoder {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &WavEncoder{
		enc:    wav.NewEncoder(w, sampleRate, BitsPerSample, Channels, 1),
		format: &audio.Format{NumChannels: Channels, SampleRate: sampleRate},
	}
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	start := time.Now()
	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{Format: e.format, Data: data, SourceBitDepth: BitsPerSample}
	if err := e.enc.Write(buf); err != nil {
		return err
	}
	e.totalFrames += uint64(len(block))
	e.encodeTime += time.Since(start)
	return nil
}

// Close patches the RIFF header sizes. The underlying writer stays open.
func (e *WavEncoder) Close() error {
	return e.enc.Close()
}

func (e *WavEncoder) Format() string            { return FormatWAV }
func (e *WavEncoder) TotalFrames() uint64       { return e.totalFrames }
func (e *WavEncoder) EncodeTime() time.Duration { return e.encodeTime }
