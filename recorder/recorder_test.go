package recorder

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"chatterbridge/audio"
	"chatterbridge/encoder"
)

type silentContext struct {
	devices []audio.DeviceInfo
	err     error
}

func (c *silentContext) Devices() ([]audio.DeviceInfo, error) { return c.devices, c.err }
func (c *silentContext) Close()                               {}
func (c *silentContext) NewCapture(*audio.DeviceInfo, audio.CaptureConfig) (audio.CaptureDevice, error) {
	return &silentCapture{}, nil
}

type silentCapture struct{ started, stopped bool }

func (c *silentCapture) Start() error                   { c.started = true; return nil }
func (c *silentCapture) Stop()                          { c.stopped = true }
func (c *silentCapture) Close()                         {}
func (c *silentCapture) SetCallback(audio.DataCallback) {}
func (c *silentCapture) ClearCallback()                 {}
func (c *silentCapture) DeviceName() string             { return "silent" }

func tone(seconds float64, rate int) []byte {
	n := int(seconds * float64(rate))
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		v := int16(10000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		out = binary.LittleEndian.AppendUint16(out, uint16(v))
	}
	return out
}

func TestStartStopWritesFile(t *testing.T) {
	for _, format := range []string{encoder.FormatWAV, encoder.FormatFLAC} {
		t.Run(format, func(t *testing.T) {
			pcm := tone(0.5, 16000)
			ctx := audio.NewFakeContextPCM(pcm, 16000, false)
			r := New(ctx, Options{Format: format, Dir: t.TempDir()})

			if err := r.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}
			if !r.Recording() {
				t.Fatal("expected Recording() after Start")
			}
			rec, err := r.Stop()
			if err != nil {
				t.Fatalf("Stop: %v", err)
			}
			defer rec.Remove()

			if rec.Format != format {
				t.Errorf("Format = %q, want %q", rec.Format, format)
			}
			if rec.Frames < uint64(len(pcm)/2) {
				t.Errorf("Frames = %d, want at least %d", rec.Frames, len(pcm)/2)
			}
			if rec.Duration < 500*time.Millisecond {
				t.Errorf("Duration = %v", rec.Duration)
			}
			info, err := os.Stat(rec.Path)
			if err != nil {
				t.Fatalf("recording file missing: %v", err)
			}
			if info.Size() != rec.SizeBytes || info.Size() == 0 {
				t.Errorf("size = %d, reported %d", info.Size(), rec.SizeBytes)
			}
			if r.Recording() {
				t.Error("still recording after Stop")
			}
		})
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := audio.NewFakeContextPCM(tone(0.1, 16000), 16000, false)
	r := New(ctx, Options{Dir: t.TempDir()})
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	rec, err := r.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(rec.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file still present: %v", err)
	}
	if err := rec.Remove(); err != nil {
		t.Errorf("second Remove: %v", err)
	}
	var nilRec *Recording
	if err := nilRec.Remove(); err != nil {
		t.Errorf("nil Remove: %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	r := New(&silentContext{}, Options{})
	if _, err := r.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("got %v, want ErrNotRecording", err)
	}
}

func TestDoubleStart(t *testing.T) {
	r := New(&silentContext{devices: []audio.DeviceInfo{{Name: "mic"}}}, Options{})
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	defer r.Cancel()
	if err := r.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("got %v, want ErrAlreadyRecording", err)
	}
}

func TestStopWithNoAudio(t *testing.T) {
	dir := t.TempDir()
	r := New(&silentContext{}, Options{Dir: dir})
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	rec, err := r.Stop()
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("got %v, want ErrEmpty", err)
	}
	if rec != nil {
		t.Fatal("expected no recording")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no files, got %d", len(entries))
	}
}

func TestRequestPermission(t *testing.T) {
	tests := []struct {
		name string
		ctx  *silentContext
		ok   bool
	}{
		{"device present", &silentContext{devices: []audio.DeviceInfo{{Name: "mic"}}}, true},
		{"no devices", &silentContext{}, false},
		{"enumeration refused", &silentContext{err: audio.ErrNoDevices}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.ctx, Options{}).RequestPermission()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("got %v, want ErrPermissionDenied", err)
			}
		})
	}
}

func TestMaxDurationCapsBuffer(t *testing.T) {
	ctx := audio.NewFakeContextPCM(tone(2, 16000), 16000, false)
	r := New(ctx, Options{Dir: t.TempDir(), MaxDuration: 500 * time.Millisecond})
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	rec, err := r.Stop()
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Remove()
	if rec.Duration > 600*time.Millisecond {
		t.Errorf("Duration = %v, expected cap near 500ms", rec.Duration)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v", got)
	}
	if got := RMS(make([]byte, 64)); got != 0 {
		t.Errorf("RMS(silence) = %v", got)
	}
	minSample := int16(math.MinInt16)
	full := binary.LittleEndian.AppendUint16(nil, uint16(minSample))
	if got := RMS(full); math.Abs(got-1) > 1e-9 {
		t.Errorf("RMS(full scale) = %v", got)
	}
	if got := RMS(tone(0.1, 16000)); got < 0.2 || got > 0.25 {
		t.Errorf("RMS(tone) = %v, want about 0.216", got)
	}
}
