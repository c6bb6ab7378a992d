package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chatterbridge/config"
)

// DefaultErrorMessage is shown when a failed response carries no message.
const DefaultErrorMessage = "Transcription failed"

// AutoDetect is reported when the service does not name the spoken language.
const AutoDetect = "Auto Detect"

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}

type Result struct {
	Text             string
	DetectedLanguage string
	Confidence       float64
	Duration         float64
	RateLimit        string
	Metrics          *NetworkMetrics
}

// APIError is a response the service produced but that did not carry a
// transcript: a non-2xx status, an {"error": ...} body or success=false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

func newAPIError(status int, msg string) *APIError {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = DefaultErrorMessage
	}
	return &APIError{StatusCode: status, Message: msg}
}

// Message is the text a screen shows for err: the service message when
// there is one, otherwise the error text itself.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.As(err, &apiErr) {
		return DefaultErrorMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return DefaultErrorMessage
}

// Transcriber uploads one finished recording and waits for its transcript.
// Implementations make exactly one request per call.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, path string) (*Result, error)
}

func New(cfg config.TranscribeConfig) (Transcriber, error) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	switch cfg.Backend {
	case "json":
		return NewJSONServer(cfg.URL, timeout), nil
	case "multipart":
		return NewMultipartServer(cfg.URL, timeout), nil
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.Language, timeout), nil
	case "groq":
		return NewGroq(cfg.APIKey, cfg.Model, cfg.Language, timeout), nil
	case "mock":
		return NewMock(nil, nil), nil
	}
	return nil, fmt.Errorf("unknown transcribe backend %q", cfg.Backend)
}
