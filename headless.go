package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"chatterbridge/audio"
	"chatterbridge/beep"
	"chatterbridge/config"
	"chatterbridge/flow"
	"chatterbridge/log"
)

// lineSink prints screen events one per line so a driver can follow them.
type lineSink struct {
	mu   sync.Mutex
	out  io.Writer
	flow *flow.Speech
}

func (s *lineSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *lineSink) RecordingStart()             { s.printf("event recording_start") }
func (s *lineSink) RecordingStop(auto bool)     { s.printf("event recording_stop auto=%t", auto) }
func (s *lineSink) RecordingTick(time.Duration) {}
func (s *lineSink) AudioLevel(float64)          {}
func (s *lineSink) NoVoiceWarning(repeat bool)  { s.printf("event no_voice repeat=%t", repeat) }
func (s *lineSink) NoVoiceCleared()             { s.printf("event no_voice_cleared") }

func (s *lineSink) Alert(a flow.Alert) {
	s.printf("alert %q %q", a.Title, a.Message)
}

func (s *lineSink) Changed() {
	if s.flow != nil {
		s.printView(s.flow.Snapshot())
	}
}

func (s *lineSink) printView(v flow.SpeechView) {
	s.printf("view state=%s text=%q lang=%q error=%q target=%s translated=%q translate_error=%q",
		v.State, v.Text, v.DetectedLanguage, v.Error, v.Target, v.Translated, v.TranslateError)
}

// runHeadless drives the speech screen from line commands on in, replaying
// wavPath as the microphone:
//
//	START | STOP | TRANSLATE <code> | SPEAK | WAIT | SLEEP <ms> | QUIT
//
// STOP returns at once; WAIT blocks until pending uploads, including one
// started by an automatic stop, are done.
func runHeadless(ctx context.Context, cfg config.Config, wavPath string, realtime bool, in io.Reader, out io.Writer) error {
	beep.Disable()

	actx, err := audio.NewFakeContext(wavPath, realtime)
	if err != nil {
		return fmt.Errorf("load wav: %w", err)
	}
	defer actx.Close()

	rec, err := newRecorder(actx, cfg.Recording)
	if err != nil {
		return err
	}
	sink := &lineSink{out: out}
	opts, err := speechOptions(cfg, rec, sink)
	if err != nil {
		return err
	}
	f := flow.NewSpeech(opts)
	sink.flow = f
	defer f.Close()

	var pending sync.WaitGroup
	wait := func() {
		pending.Wait()
		f.WaitAutoStop()
	}
	defer wait()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch cmd := strings.ToUpper(fields[0]); cmd {
		case "START":
			if err := f.Start(ctx); err != nil {
				sink.printf("error start: %v", err)
			}
		case "STOP":
			pending.Add(1)
			go func() {
				defer pending.Done()
				if err := f.Stop(ctx); err != nil {
					log.Errorf("headless stop: %v", err)
				}
			}()
		case "WAIT":
			wait()
		case "TRANSLATE":
			target := f.Snapshot().Target
			if len(fields) > 1 {
				target = fields[1]
				if err := f.SetTarget(target); err != nil {
					sink.printf("error translate: %v", err)
					continue
				}
			}
			if err := f.Translate(ctx, target); err != nil {
				sink.printf("error translate: %v", err)
			}
		case "SPEAK":
			if err := f.Speak(ctx); err != nil {
				sink.printf("error speak: %v", err)
			}
		case "SLEEP":
			if len(fields) > 1 {
				if n, err := strconv.Atoi(fields[1]); err == nil {
					time.Sleep(time.Duration(n) * time.Millisecond)
				}
			}
		case "STATE":
			sink.printView(f.Snapshot())
		case "QUIT":
			wait()
			sink.printView(f.Snapshot())
			return nil
		default:
			sink.printf("error unknown command %q", cmd)
		}
	}
	wait()
	sink.printView(f.Snapshot())
	return scanner.Err()
}
