package transcriber

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// JSONServer posts the whole recording base64-encoded in a JSON body:
//
//	{"audioBase64": "..."} -> {"text": "...", "detectedLanguage": "..."}
type JSONServer struct {
	client *TracedClient
	url    string
}

func NewJSONServer(url string, timeout time.Duration) *JSONServer {
	return &JSONServer{client: NewTracedClient(timeout), url: url}
}

func (s *JSONServer) Name() string { return "json" }

type jsonRequest struct {
	AudioBase64 string `json:"audioBase64"`
}

type jsonResponse struct {
	Text             string  `json:"text"`
	DetectedLanguage string  `json:"detectedLanguage"`
	Confidence       float64 `json:"confidence"`
	Error            string  `json:"error"`
}

func (s *JSONServer) Transcribe(ctx context.Context, path string) (*Result, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	body, err := json.Marshal(jsonRequest{AudioBase64: base64.StdEncoding.EncodeToString(audio)})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	var data jsonResponse
	parseErr := json.Unmarshal(resp.Body, &data)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || data.Error != "" {
		return nil, newAPIError(resp.StatusCode, data.Error)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("invalid transcription response: %w", parseErr)
	}

	lang := data.DetectedLanguage
	if lang == "" {
		lang = AutoDetect
	}
	return &Result{
		Text:             data.Text,
		DetectedLanguage: lang,
		Confidence:       data.Confidence,
		RateLimit:        firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests", "x-ratelimit-remaining"),
		Metrics:          resp.Metrics,
	}, nil
}
