package signdetect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"

	"chatterbridge/transcriber"
)

// HTTPDetector posts media as multipart field "file" to
// {base}/detect-sign for images and {base}/detect-video for clips.
type HTTPDetector struct {
	base   string
	client *transcriber.TracedClient
}

func NewHTTP(baseURL string, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{
		base:   strings.TrimRight(baseURL, "/"),
		client: transcriber.NewTracedClient(timeout),
	}
}

type detectResponse struct {
	Label      *string  `json:"label"`
	Confidence *float64 `json:"confidence"`
	Error      string   `json:"error"`
}

func endpoint(k Kind) (path, filename, contentType string) {
	if k == Video {
		return "/detect-video", "sign.mp4", "video/mp4"
	}
	return "/detect-sign", "sign.jpg", "image/jpeg"
}

func (d *HTTPDetector) Detect(ctx context.Context, m Media) (Result, error) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return Result{}, fmt.Errorf("read media: %w", err)
	}
	path, filename, contentType := endpoint(m.Kind)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return Result{}, err
	}
	if _, err := part.Write(data); err != nil {
		return Result{}, err
	}
	if err := w.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.base+path, &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	resp.Log("detect")
	raw := resp.Body

	var dr detectResponse
	parseErr := json.Unmarshal(raw, &dr)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || dr.Error != "" {
		msg := dr.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Result{}, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if parseErr != nil {
		return Result{}, fmt.Errorf("detect: invalid response: %w", parseErr)
	}
	return validate(dr)
}

func validate(dr detectResponse) (Result, error) {
	if dr.Label == nil || *dr.Label == "" {
		return Result{}, &APIError{Message: "response has no label"}
	}
	if dr.Confidence == nil {
		return Result{}, &APIError{Message: "response has no confidence"}
	}
	c := *dr.Confidence
	if c < 0 || c > 1 {
		return Result{}, &APIError{Message: fmt.Sprintf("confidence %v outside [0,1]", c)}
	}
	return Result{Label: *dr.Label, Confidence: c}, nil
}
