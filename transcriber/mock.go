package transcriber

import (
	"context"
	"math/rand"
	"time"
)

// SimulatedText is what the placeholder backend answers for every upload.
const SimulatedText = "Hello, this is a simulated transcription of your speech."

var mockPhrases = []string{
	SimulatedText,
	"How are you doing today?",
	"Can you help me find the train station?",
	"Thank you very much.",
	"Where is the nearest hospital?",
	"I would like a cup of coffee, please.",
}

// Mock never looks at the audio. It picks one of a fixed set of phrases.
type Mock struct {
	phrases []string
	rng     *rand.Rand
	delay   time.Duration
}

// NewMock uses phrases (or the built-in set when empty) and rng (or a
// time-seeded source when nil).
func NewMock(phrases []string, rng *rand.Rand) *Mock {
	if len(phrases) == 0 {
		phrases = mockPhrases
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Mock{phrases: phrases, rng: rng}
}

// WithDelay makes Transcribe wait d before answering, honoring ctx.
func (m *Mock) WithDelay(d time.Duration) *Mock {
	m.delay = d
	return m
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Transcribe(ctx context.Context, _ string) (*Result, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	return &Result{
		Text:             m.phrases[m.rng.Intn(len(m.phrases))],
		DetectedLanguage: AutoDetect,
		Confidence:       0.9,
		Metrics:          &NetworkMetrics{},
	}, nil
}
