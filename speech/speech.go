// Package speech plays text aloud through an external synthesizer.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

// LangPlaceholder in a command is replaced with the language code.
const LangPlaceholder = "{lang}"

var ErrNothingToSay = errors.New("nothing to speak")

type Speaker interface {
	Speak(ctx context.Context, text, lang string) error
}

// Nop is used when speech is disabled.
type Nop struct{}

func (Nop) Speak(context.Context, string, string) error { return nil }

// ExecSpeaker runs a command once per utterance with the text as the last
// argument. Only one utterance plays at a time.
type ExecSpeaker struct {
	args []string
	mu   sync.Mutex
}

func NewExec(command string) (*ExecSpeaker, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("speech command empty")
	}
	return &ExecSpeaker{args: args}, nil
}

// Program is the executable the speaker will launch.
func (s *ExecSpeaker) Program() string { return s.args[0] }

// Args builds the argument list for one utterance.
func (s *ExecSpeaker) Args(text, lang string) []string {
	if lang == "" {
		lang = "en"
	}
	out := make([]string, 0, len(s.args))
	for _, a := range s.args[1:] {
		out = append(out, strings.ReplaceAll(a, LangPlaceholder, lang))
	}
	return append(out, text)
}

func (s *ExecSpeaker) Speak(ctx context.Context, text, lang string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrNothingToSay
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.args[0], s.Args(text, lang)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", s.args[0], err, msg)
		}
		return fmt.Errorf("%s: %w", s.args[0], err)
	}
	return nil
}

// New returns an ExecSpeaker for command, or Nop when disabled.
func New(enabled bool, command string) (Speaker, error) {
	if !enabled {
		return Nop{}, nil
	}
	return NewExec(command)
}

// Utterance is one call recorded by a Fake.
type Utterance struct {
	Text string
	Lang string
}

// Fake records what it was asked to say.
type Fake struct {
	Err error

	mu    sync.Mutex
	heard []Utterance
}

func (f *Fake) Speak(_ context.Context, text, lang string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heard = append(f.heard, Utterance{Text: text, Lang: lang})
	return f.Err
}

func (f *Fake) Heard() []Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Utterance(nil), f.heard...)
}
