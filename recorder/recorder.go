// Package recorder turns a live capture device into a finished audio file.
//
// One Recorder owns at most one active capture. Stop finalizes the PCM into
// a temporary WAV or FLAC file and hands back a Recording that the caller
// must Remove once it has been uploaded.
package recorder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"chatterbridge/audio"
	"chatterbridge/encoder"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
	// ErrEmpty means capture stopped before any audio arrived. No file is
	// written.
	ErrEmpty = errors.New("no audio captured")
)

type Options struct {
	Format     string // encoder.FormatWAV or encoder.FormatFLAC
	SampleRate int
	Device     *audio.DeviceInfo
	// Dir holds temporary recordings; empty means os.TempDir.
	Dir string
	// MaxDuration stops accepting audio past this length; zero means no cap.
	MaxDuration time.Duration
}

type Recording struct {
	Path       string
	Format     string
	SampleRate int
	Frames     uint64
	Duration   time.Duration
	SizeBytes  int64
	EncodeTime time.Duration
}

// Remove deletes the backing file. It is safe to call more than once.
func (r *Recording) Remove() error {
	if r == nil || r.Path == "" {
		return nil
	}
	err := os.Remove(r.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

type Recorder struct {
	actx audio.Context
	opts Options

	mu      sync.Mutex
	capture audio.CaptureDevice
	pcm     []byte
	started time.Time
	active  bool

	level atomic.Uint64 // math.Float64bits of the last chunk RMS
}

func New(actx audio.Context, opts Options) *Recorder {
	if opts.SampleRate <= 0 {
		opts.SampleRate = encoder.DefaultSampleRate
	}
	if opts.Format == "" {
		opts.Format = encoder.FormatWAV
	}
	return &Recorder{actx: actx, opts: opts}
}

// RequestPermission reports whether a microphone can be opened. A platform
// with no capture source, or one that refuses enumeration, counts as denied.
func (r *Recorder) RequestPermission() error {
	devices, err := r.actx.Devices()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if len(devices) == 0 {
		return ErrPermissionDenied
	}
	return nil
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.active || r.capture != nil {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.pcm = r.pcm[:0]
	r.mu.Unlock()

	capture, err := r.actx.NewCapture(r.opts.Device, audio.CaptureConfig{
		SampleRate: uint32(r.opts.SampleRate),
		Channels:   encoder.Channels,
	})
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}

	r.level.Store(0)
	maxBytes := 0
	if r.opts.MaxDuration > 0 {
		maxBytes = int(r.opts.MaxDuration.Seconds()*float64(r.opts.SampleRate)) * 2
	}
	capture.SetCallback(func(data []byte, _ uint32) {
		r.level.Store(math.Float64bits(RMS(data)))
		r.mu.Lock()
		if r.active && (maxBytes == 0 || len(r.pcm) < maxBytes) {
			r.pcm = append(r.pcm, data...)
		}
		r.mu.Unlock()
	})

	r.mu.Lock()
	r.capture = capture
	r.started = time.Now()
	r.active = true
	r.mu.Unlock()

	// Fake devices deliver audio synchronously from Start, so the lock must
	// not be held here.
	if err := capture.Start(); err != nil {
		r.mu.Lock()
		r.active = false
		r.capture = nil
		r.mu.Unlock()
		capture.ClearCallback()
		capture.Close()
		return fmt.Errorf("start capture: %w", err)
	}
	return nil
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Level is the RMS of the most recent chunk, in [0,1].
func (r *Recorder) Level() float64 {
	return math.Float64frombits(r.level.Load())
}

func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return 0
	}
	return time.Since(r.started)
}

func (r *Recorder) DeviceName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.capture != nil {
		return r.capture.DeviceName()
	}
	if r.opts.Device != nil {
		return r.opts.Device.Name
	}
	return "system default"
}

// Stop ends the capture and writes the buffered audio to a temp file.
func (r *Recorder) Stop() (*Recording, error) {
	pcm, err := r.halt()
	if err != nil {
		return nil, err
	}
	if len(pcm) < 2 {
		return nil, ErrEmpty
	}
	return r.write(pcm)
}

// Cancel ends the capture and discards whatever was recorded.
func (r *Recorder) Cancel() {
	r.halt()
}

func (r *Recorder) halt() ([]byte, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.active = false
	capture := r.capture
	r.capture = nil
	r.mu.Unlock()

	capture.Stop()
	capture.ClearCallback()
	capture.Close()
	r.level.Store(0)

	r.mu.Lock()
	pcm := make([]byte, len(r.pcm))
	copy(pcm, r.pcm)
	r.pcm = r.pcm[:0]
	r.mu.Unlock()
	return pcm, nil
}

func (r *Recorder) write(pcm []byte) (*Recording, error) {
	f, err := os.CreateTemp(r.opts.Dir, "chatterbridge-*."+r.opts.Format)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}
	rec := &Recording{Path: f.Name(), Format: r.opts.Format, SampleRate: r.opts.SampleRate}

	fail := func(err error) (*Recording, error) {
		f.Close()
		rec.Remove()
		return nil, err
	}

	enc, err := encoder.New(r.opts.Format, f, r.opts.SampleRate)
	if err != nil {
		return fail(err)
	}
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	for i := 0; i < len(samples); i += encoder.BlockSize {
		end := min(i+encoder.BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return fail(fmt.Errorf("encode: %w", err))
		}
	}
	if err := enc.Close(); err != nil {
		return fail(fmt.Errorf("finalize %s: %w", r.opts.Format, err))
	}
	// The flac encoder closes the file itself.
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fail(err)
	}

	info, err := os.Stat(rec.Path)
	if err != nil {
		return fail(err)
	}
	rec.Frames = enc.TotalFrames()
	rec.Duration = time.Duration(float64(rec.Frames) / float64(r.opts.SampleRate) * float64(time.Second))
	rec.SizeBytes = info.Size()
	rec.EncodeTime = enc.EncodeTime()
	return rec, nil
}

// RMS of little-endian 16-bit PCM, normalized to [0,1].
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
