// Package flow holds the per-screen state machines. Each screen owns one
// controller; controllers share no state with each other.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chatterbridge/language"
	"chatterbridge/log"
	"chatterbridge/recorder"
	"chatterbridge/speech"
	"chatterbridge/transcriber"
	"chatterbridge/translator"
)

const DefaultTickInterval = 100 * time.Millisecond

var (
	ErrBusy            = errors.New("screen is busy")
	ErrUnknownLanguage = errors.New("unknown target language")
	ErrClosed          = errors.New("screen closed")
)

var (
	PermissionAlert = Alert{Title: "Permission Required", Message: "Microphone permission is needed to record audio."}
	StartAlert      = Alert{Title: "Recording Error", Message: "Failed to start recording. Please try again."}
	StopAlert       = Alert{Title: "Recording Error", Message: "Failed to stop recording. Please try again."}
)

type State int

const (
	Idle State = iota
	Recording
	Transcribing
	Result
	Error
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Result:
		return "result"
	case Error:
		return "error"
	}
	return "idle"
}

// Recorder is the capture side of the speech screen.
type Recorder interface {
	RequestPermission() error
	Start() error
	Stop() (*recorder.Recording, error)
	Cancel()
	Level() float64
	Elapsed() time.Duration
}

type SpeechView struct {
	State            State
	Text             string
	DetectedLanguage string
	Error            string

	Target         string
	Translating    bool
	Translated     string
	TranslateError string

	Speaking bool
	Elapsed  time.Duration
	Level    float64
	NoVoice  bool
}

type SpeechOptions struct {
	Recorder    Recorder
	Transcriber transcriber.Transcriber
	Translator  translator.Translator
	Speaker     speech.Speaker
	Sink        EventSink

	DefaultTarget    string
	Format           string
	SilenceThreshold float64
	SilenceWarn      time.Duration
	SilenceAutoStop  time.Duration
	MaxDuration      time.Duration
	TickInterval     time.Duration
}

// Speech drives Idle → Recording → Transcribing → Result|Error.
type Speech struct {
	opts SpeechOptions

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	view     SpeechView
	gen      int
	done     chan struct{}
	ticker   sync.WaitGroup
	autoStop sync.WaitGroup
	starting bool
	closed   bool
	uploads  int
}

func NewSpeech(opts SpeechOptions) *Speech {
	if opts.Translator == nil {
		opts.Translator = translator.Disabled{}
	}
	if opts.Speaker == nil {
		opts.Speaker = speech.Nop{}
	}
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Speech{opts: opts, ctx: ctx, cancel: cancel}
	s.view.Target = opts.DefaultTarget
	log.ScreenOpen("speech", opts.Transcriber.Name())
	return s
}

func (s *Speech) Snapshot() SpeechView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Start asks for the microphone and begins a new recording. All result and
// error state from the previous cycle is cleared.
func (s *Speech) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.starting || s.view.State == Recording || s.view.State == Transcribing {
		s.mu.Unlock()
		return ErrBusy
	}
	s.starting = true
	s.mu.Unlock()

	if err := s.opts.Recorder.RequestPermission(); err != nil {
		s.endStarting()
		log.Warnf("microphone permission: %v", err)
		s.opts.Sink.Alert(PermissionAlert)
		return err
	}
	if err := s.opts.Recorder.Start(); err != nil {
		s.endStarting()
		log.Errorf("start recording: %v", err)
		s.opts.Sink.Alert(StartAlert)
		return err
	}

	s.mu.Lock()
	s.starting = false
	if s.closed {
		s.mu.Unlock()
		s.opts.Recorder.Cancel()
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	s.view = SpeechView{State: Recording, Target: s.view.Target}
	done := make(chan struct{})
	s.done = done
	s.ticker.Add(1)
	s.mu.Unlock()

	go s.tick(done, gen)
	s.opts.Sink.RecordingStart()
	s.opts.Sink.Changed()
	return nil
}

func (s *Speech) endStarting() {
	s.mu.Lock()
	s.starting = false
	s.mu.Unlock()
}

func (s *Speech) tick(done chan struct{}, gen int) {
	defer s.ticker.Done()
	monitor := newSilenceMonitor(s.opts.TickInterval, s.opts.SilenceWarn, s.opts.SilenceAutoStop)
	t := time.NewTicker(s.opts.TickInterval)
	defer t.Stop()

	for {
		select {
		case <-done:
			return
		case <-t.C:
		}
		level := s.opts.Recorder.Level()
		elapsed := s.opts.Recorder.Elapsed()

		s.mu.Lock()
		s.view.Level = level
		s.view.Elapsed = elapsed
		s.mu.Unlock()
		s.opts.Sink.AudioLevel(level)
		s.opts.Sink.RecordingTick(elapsed)

		auto := s.opts.MaxDuration > 0 && elapsed >= s.opts.MaxDuration
		switch monitor.Tick(level >= s.opts.SilenceThreshold) {
		case SilenceWarn:
			s.setNoVoice(true)
			s.opts.Sink.NoVoiceWarning(false)
		case SilenceRepeat:
			s.opts.Sink.NoVoiceWarning(true)
		case SilenceWarnClear:
			s.setNoVoice(false)
			s.opts.Sink.NoVoiceCleared()
		case SilenceAutoStop:
			auto = true
		}
		if auto {
			log.Info("auto-stop recording")
			// Stop waits for this goroutine, so it must run elsewhere.
			s.autoStop.Add(1)
			go func() {
				defer s.autoStop.Done()
				s.stop(s.ctx, true, gen)
			}()
			return
		}
	}
}

func (s *Speech) setNoVoice(v bool) {
	s.mu.Lock()
	s.view.NoVoice = v
	s.mu.Unlock()
}

// Stop finalizes the active recording and uploads it once. Without an active
// recording it does nothing.
func (s *Speech) Stop(ctx context.Context) error {
	return s.stop(ctx, false, 0)
}

// WaitAutoStop blocks until any automatic stop and its upload have finished.
func (s *Speech) WaitAutoStop() {
	s.autoStop.Wait()
}

// stop ends the recording of cycle gen, or the current one when gen is 0.
func (s *Speech) stop(ctx context.Context, auto bool, gen int) error {
	s.mu.Lock()
	if s.view.State != Recording || gen != 0 && gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	s.view.State = Transcribing
	s.view.NoVoice = false
	s.view.Level = 0
	close(s.done)
	gen = s.gen
	s.mu.Unlock()

	s.ticker.Wait()
	s.opts.Sink.RecordingStop(auto)
	s.opts.Sink.Changed()

	rec, err := s.opts.Recorder.Stop()
	if errors.Is(err, recorder.ErrEmpty) {
		s.finish(gen, func(v *SpeechView) { v.State = Idle })
		return nil
	}
	if err != nil {
		log.Errorf("stop recording: %v", err)
		s.finish(gen, func(v *SpeechView) { v.State = Idle })
		s.opts.Sink.Alert(StopAlert)
		return err
	}
	defer rec.Remove()

	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()

	res, err := s.opts.Transcriber.Transcribe(reqCtx, rec.Path)
	if err != nil && s.ctx.Err() != nil {
		return ErrClosed
	}
	if err != nil {
		msg := transcriber.Message(err)
		log.Errorf("transcribe (%s): %v", s.opts.Transcriber.Name(), err)
		s.finish(gen, func(v *SpeechView) {
			v.State = Error
			v.Text = ""
			v.DetectedLanguage = ""
			v.Error = msg
		})
		return err
	}

	s.logUpload(rec, res)
	log.Result("transcript", res.Text)
	s.finish(gen, func(v *SpeechView) {
		v.State = Result
		v.Text = res.Text
		v.DetectedLanguage = res.DetectedLanguage
		if v.DetectedLanguage == "" {
			v.DetectedLanguage = transcriber.AutoDetect
		}
		v.Error = ""
	})
	return nil
}

// finish applies fn unless a newer cycle has started since gen.
func (s *Speech) finish(gen int, fn func(v *SpeechView)) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	fn(&s.view)
	s.uploads++
	s.mu.Unlock()
	s.opts.Sink.Changed()
}

// requestContext ends when either the caller's context or the screen ends.
func (s *Speech) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	reqCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return reqCtx, func() {
		stop()
		cancel()
	}
}

func (s *Speech) logUpload(rec *recorder.Recording, res *transcriber.Result) {
	m := log.UploadMetrics{
		AudioLengthS: rec.Duration.Seconds(),
		FileSizeKB:   float64(rec.SizeBytes) / 1024,
		EncodeTimeMs: float64(rec.EncodeTime.Microseconds()) / 1000,
	}
	if nm := res.Metrics; nm != nil {
		m.DNSTimeMs = float64(nm.DNS.Microseconds()) / 1000
		m.TLSTimeMs = float64(nm.TLS.Microseconds()) / 1000
		m.TTFBMs = float64(nm.TTFB.Microseconds()) / 1000
		m.TotalTimeMs = float64(nm.Total.Microseconds()) / 1000
		m.ConnReused = nm.ConnReused
		m.TLSProto = nm.TLSProtocol
	}
	log.Upload(m, s.opts.Transcriber.Name(), rec.Format)
	log.Confidence(res.Confidence)
}

// SetTarget changes the target language without translating.
func (s *Speech) SetTarget(code string) error {
	if !language.Valid(code) {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}
	s.mu.Lock()
	s.view.Target = strings.ToLower(strings.TrimSpace(code))
	s.mu.Unlock()
	s.opts.Sink.Changed()
	return nil
}

// Translate sends the recognized text to the translator once. It does
// nothing when there is no text or no target.
func (s *Speech) Translate(ctx context.Context, target string) error {
	target = strings.ToLower(strings.TrimSpace(target))
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	text := s.view.Text
	if text == "" || target == "" {
		s.mu.Unlock()
		return nil
	}
	if !language.Valid(target) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, target)
	}
	if s.view.Translating {
		s.mu.Unlock()
		return ErrBusy
	}
	s.view.Target = target
	s.view.Translating = true
	s.view.TranslateError = ""
	gen := s.gen
	s.mu.Unlock()
	s.opts.Sink.Changed()

	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()
	tr, err := s.opts.Translator.Translate(reqCtx, text, "", target)

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return err
	}
	s.view.Translating = false
	if err != nil {
		log.Errorf("translate (%s, %s): %v", s.opts.Translator.Name(), target, err)
		s.view.Translated = ""
		s.view.TranslateError = translator.FailureMessage
	} else {
		s.view.Translated = tr.TranslatedText
		log.Result("translation", target+"\t"+tr.TranslatedText)
	}
	s.mu.Unlock()
	s.opts.Sink.Changed()
	return err
}

// Speak reads the translation aloud if there is one, otherwise the
// recognized text.
func (s *Speech) Speak(ctx context.Context) error {
	s.mu.Lock()
	text, lang := s.view.Translated, s.view.Target
	if text == "" {
		text, lang = s.view.Text, s.view.DetectedLanguage
		if !language.Valid(lang) {
			lang = ""
		}
	}
	if text == "" || s.view.Speaking {
		s.mu.Unlock()
		return nil
	}
	s.view.Speaking = true
	s.mu.Unlock()
	s.opts.Sink.Changed()

	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()
	err := s.opts.Speaker.Speak(reqCtx, text, lang)
	if err != nil {
		log.Errorf("speak: %v", err)
	}

	s.mu.Lock()
	s.view.Speaking = false
	s.mu.Unlock()
	s.opts.Sink.Changed()
	return err
}

// Close aborts in-flight requests, stops timers and discards any active
// recording.
func (s *Speech) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	recording := s.view.State == Recording
	if recording {
		close(s.done)
	}
	uploads := s.uploads
	s.view.State = Idle
	s.mu.Unlock()

	s.cancel()
	s.ticker.Wait()
	if recording {
		s.opts.Recorder.Cancel()
	}
	log.ScreenClose("speech", uploads)
}
