package transcriber

import (
	"context"
	"sync"
)

// FakeTranscriber answers with a fixed result or error and records the
// paths it was asked to transcribe.
type FakeTranscriber struct {
	text string
	lang string
	err  error

	mu    sync.Mutex
	calls []string
	block chan struct{}
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

func (f *FakeTranscriber) WithLanguage(lang string) *FakeTranscriber {
	f.lang = lang
	return f
}

// Block holds every Transcribe call until the returned func is called or
// the caller's context ends.
func (f *FakeTranscriber) Block() (release func()) {
	f.block = make(chan struct{})
	var once sync.Once
	return func() { once.Do(func() { close(f.block) }) }
}

func (f *FakeTranscriber) Name() string { return "fake" }

func (f *FakeTranscriber) Transcribe(ctx context.Context, path string) (*Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	lang := f.lang
	if lang == "" {
		lang = AutoDetect
	}
	return &Result{Text: f.text, DetectedLanguage: lang, Confidence: 0.9, Metrics: &NetworkMetrics{}}, nil
}

func (f *FakeTranscriber) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
