// Package translator turns recognized text into a target language with a
// single request, or from a local phrasebook.
package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatterbridge/config"
)

// FailureMessage is the only text a screen shows when translation fails.
const FailureMessage = "Translation failed. Please try again."

var (
	ErrDisabled = errors.New("translation is disabled")
	ErrNoEntry  = errors.New("no phrasebook entry")
)

type Translation struct {
	SourceText     string
	TranslatedText string
	SourceLang     string
	TargetLang     string
}

type Translator interface {
	Name() string
	Translate(ctx context.Context, text, source, target string) (Translation, error)
}

func New(cfg config.TranslateConfig) (Translator, error) {
	switch cfg.Backend {
	case "http":
		return NewHTTP(HTTPOptions{
			URL:     cfg.URL,
			APIKey:  cfg.APIKey,
			APIHost: cfg.APIHost,
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		}), nil
	case "static":
		t := NewStatic()
		if cfg.Table != "" {
			if err := t.LoadFile(cfg.Table); err != nil {
				return nil, err
			}
		}
		return t, nil
	case "none", "":
		return Disabled{}, nil
	}
	return nil, fmt.Errorf("unknown translate backend %q", cfg.Backend)
}

type Disabled struct{}

func (Disabled) Name() string { return "none" }

func (Disabled) Translate(context.Context, string, string, string) (Translation, error) {
	return Translation{}, ErrDisabled
}
