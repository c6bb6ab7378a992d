package encoder

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mewkiz/flac"
)

func TestFlacEncoderPartialBlock(t *testing.T) {
	var out bytes.Buffer
	enc, err := NewFlac(&out, DefaultSampleRate)
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	partial := make([]int16, BlockSize/4)
	for i := range partial {
		partial[i] = int16(i%1000 - 500)
	}
	if err := enc.EncodeBlock(partial); err != nil {
		t.Fatalf("EncodeBlock partial: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != uint64(len(partial)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(partial))
	}

	stream, err := flac.New(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("flac.New: %v", err)
	}
	fr, err := stream.ParseNext()
	if err != nil {
		t.Fatalf("ParseNext: %v", err)
	}
	got := fr.Subframes[0].Samples
	if len(got) != len(partial) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(partial))
	}
	for i, s := range partial {
		if got[i] != int32(s) {
			t.Fatalf("sample %d = %d, want %d", i, got[i], s)
		}
	}
}

func TestFlacEncoderToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.flac")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := New(FormatFLAC, f, 8000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	feed(t, enc, sine(8000, 300, 8000))
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 4 || string(data[:4]) != "fLaC" {
		t.Fatal("file does not start with FLAC magic")
	}
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("flac.New: %v", err)
	}
	if stream.Info.SampleRate != 8000 || stream.Info.NChannels != 1 {
		t.Errorf("stream info = %d Hz, %d ch", stream.Info.SampleRate, stream.Info.NChannels)
	}
}
