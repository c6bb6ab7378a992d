package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MultipartServer uploads the recording as form field "audio":
//
//	{"success": true, "transcribed_text": "...", "confidence": 0.9}
type MultipartServer struct {
	client *TracedClient
	url    string
}

func NewMultipartServer(url string, timeout time.Duration) *MultipartServer {
	return &MultipartServer{client: NewTracedClient(timeout), url: url}
}

func (s *MultipartServer) Name() string { return "multipart" }

type multipartResponse struct {
	Success         bool    `json:"success"`
	TranscribedText string  `json:"transcribed_text"`
	Confidence      float64 `json:"confidence"`
	Error           string  `json:"error"`
}

func audioContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".flac":
		return "audio/flac"
	case ".m4a":
		return "audio/m4a"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "audio/wav"
	}
}

func (s *MultipartServer) Transcribe(ctx context.Context, path string) (*Result, error) {
	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="audio%s"`, filepath.Ext(path)))
	h.Set("Content-Type", audioContentType(path))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	var data multipartResponse
	parseErr := json.Unmarshal(resp.Body, &data)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, data.Error)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("invalid transcription response: %w", parseErr)
	}
	if !data.Success {
		return nil, newAPIError(0, data.Error)
	}
	return &Result{
		Text:             data.TranscribedText,
		DetectedLanguage: AutoDetect,
		Confidence:       data.Confidence,
		Metrics:          resp.Metrics,
	}, nil
}
