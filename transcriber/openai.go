package transcriber

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	openAIModel = openai.Whisper1
	groqBaseURL = "https://api.groq.com/openai/v1"
	groqModel   = "whisper-large-v3-turbo"
)

// OpenAI talks to any OpenAI-compatible /audio/transcriptions endpoint.
type OpenAI struct {
	name   string
	client *openai.Client
	model  string
	lang   string
}

func NewOpenAI(apiKey, model, lang string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = openAIModel
	}
	return newOpenAICompatible("openai", apiKey, "", model, lang, timeout)
}

func NewGroq(apiKey, model, lang string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = groqModel
	}
	return newOpenAICompatible("groq", apiKey, groqBaseURL, model, lang, timeout)
}

func newOpenAICompatible(name, apiKey, baseURL, model, lang string, timeout time.Duration) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = NewTracedClient(timeout).HTTPClient()
	return &OpenAI{
		name:   name,
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		lang:   lang,
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Transcribe(ctx context.Context, path string) (*Result, error) {
	ctx, metrics, done := WithTrace(ctx)
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: path,
		Language: o.lang,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	done()
	if err != nil {
		return nil, fromOpenAIError(err)
	}

	lang := resp.Language
	if lang == "" {
		lang = AutoDetect
	}
	logprobs := make([]float64, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		logprobs = append(logprobs, seg.AvgLogprob)
	}
	return &Result{
		Text:             resp.Text,
		DetectedLanguage: lang,
		Confidence:       logprobConfidence(logprobs),
		Duration:         resp.Duration,
		Metrics:          metrics,
	}, nil
}

func fromOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return newAPIError(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newAPIError(reqErr.HTTPStatusCode, "")
	}
	return err
}

// logprobConfidence maps the mean per-segment log probability to (0,1].
func logprobConfidence(logprobs []float64) float64 {
	if len(logprobs) == 0 {
		return 0
	}
	var sum float64
	for _, lp := range logprobs {
		sum += lp
	}
	return math.Min(1, math.Exp(sum/float64(len(logprobs))))
}
