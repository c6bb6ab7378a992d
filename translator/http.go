package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chatterbridge/transcriber"
)

type HTTPOptions struct {
	URL string
	// APIKey and APIHost are sent as X-RapidAPI-Key and X-RapidAPI-Host
	// when set.
	APIKey  string
	APIHost string
	Timeout time.Duration
}

// HTTP speaks the deep-translate wire shape:
//
//	{"q": "...", "source": "auto", "target": "es"}
//	-> {"data": {"translations": {"translatedText": "..."}}}
type HTTP struct {
	opts   HTTPOptions
	client *transcriber.TracedClient
}

func NewHTTP(opts HTTPOptions) *HTTP {
	return &HTTP{opts: opts, client: transcriber.NewTracedClient(opts.Timeout)}
}

func (h *HTTP) Name() string { return "http" }

type Request struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type Response struct {
	Data struct {
		Translations struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (h *HTTP) Translate(ctx context.Context, text, source, target string) (Translation, error) {
	if source == "" {
		source = "auto"
	}
	body, err := json.Marshal(Request{Q: text, Source: source, Target: target})
	if err != nil {
		return Translation{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.opts.URL, bytes.NewReader(body))
	if err != nil {
		return Translation{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.opts.APIKey != "" {
		req.Header.Set("X-RapidAPI-Key", h.opts.APIKey)
	}
	if h.opts.APIHost != "" {
		req.Header.Set("X-RapidAPI-Host", h.opts.APIHost)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Translation{}, err
	}
	resp.Log("translate")
	raw := resp.Body

	var data Response
	parseErr := json.Unmarshal(raw, &data)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Translation{}, fmt.Errorf("translate: status %d: %s", resp.StatusCode, firstMessage(data, raw))
	}
	if parseErr != nil {
		return Translation{}, fmt.Errorf("translate: invalid response: %w", parseErr)
	}
	if data.Error != "" {
		return Translation{}, fmt.Errorf("translate: %s", data.Error)
	}
	out := data.Data.Translations.TranslatedText
	if out == "" {
		return Translation{}, fmt.Errorf("translate: empty translation")
	}
	return Translation{SourceText: text, TranslatedText: out, SourceLang: source, TargetLang: target}, nil
}

func firstMessage(data Response, raw []byte) string {
	switch {
	case data.Error != "":
		return data.Error
	case data.Message != "":
		return data.Message
	}
	return strings.TrimSpace(string(raw))
}
