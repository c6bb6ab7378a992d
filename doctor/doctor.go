// Package doctor checks that each piece the app depends on answers before a
// user relies on it: microphone, transcription, translation, sign
// detection, spoken output and the clipboard.
package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"strings"
	"time"

	"chatterbridge/audio"
	"chatterbridge/clipboard"
	"chatterbridge/config"
	"chatterbridge/recorder"
	"chatterbridge/speech"
	"chatterbridge/transcriber"
	"chatterbridge/translator"
)

const probeTimeout = 5 * time.Second

type Options struct {
	Config config.Config
	// Audio overrides the platform audio context. Nil opens the real one.
	Audio audio.Context
	// RecordFor is how long the microphone check captures.
	RecordFor time.Duration
	Out       io.Writer
	// In, when set, is asked to confirm the transcript.
	In io.Reader
}

type check struct {
	name string
	run  func(ctx context.Context, r *run) error
	// skip reports a reason the check does not apply.
	skip func(r *run) string
}

type run struct {
	opts      Options
	out       io.Writer
	recording *recorder.Recording
}

func (r *run) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// Run executes every check in order and returns an exit code (0=all pass,
// 1=any fail). A failing microphone check does not stop the network checks.
func Run(ctx context.Context, opts Options) int {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.RecordFor <= 0 {
		opts.RecordFor = 3 * time.Second
	}
	r := &run{opts: opts, out: opts.Out}
	defer func() { r.recording.Remove() }()

	r.printf("chatterbridge doctor\n")
	r.printf("====================\n")

	checks := []check{
		{name: "Microphone", run: checkMicrophone},
		{name: "Transcription (" + opts.Config.Transcribe.Backend + ")", run: checkTranscription},
		{name: "Translation (" + opts.Config.Translate.Backend + ")", run: checkTranslation, skip: skipTranslation},
		{name: "Sign detection", run: checkDetect},
		{name: "Spoken output", run: checkSpeech, skip: skipSpeech},
		{name: "Clipboard", run: checkClipboard},
	}

	failed := 0
	for i, c := range checks {
		r.printf("\n[%d/%d] %s\n", i+1, len(checks), c.name)
		if c.skip != nil {
			if reason := c.skip(r); reason != "" {
				r.printf("  SKIP: %s\n", reason)
				continue
			}
		}
		if err := c.run(ctx, r); err != nil {
			r.printf("  FAIL: %v\n", err)
			failed++
			continue
		}
	}

	r.printf("\n")
	if failed == 0 {
		r.printf("All checks passed!\n")
		return 0
	}
	r.printf("%d check(s) failed. See details above.\n", failed)
	return 1
}

func checkMicrophone(_ context.Context, r *run) error {
	actx := r.opts.Audio
	if actx == nil {
		c, err := audio.NewContext()
		if err != nil {
			return fmt.Errorf("cannot connect to audio: %w", err)
		}
		defer c.Close()
		actx = c
	}

	devices, err := actx.Devices()
	if err != nil {
		return fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return errors.New("no capture devices found")
	}
	for _, d := range devices {
		tag := ""
		if audio.IsBluetooth(d.Name) {
			tag = " (bluetooth, lower quality)"
		}
		r.printf("  device: %s%s\n", d.Name, tag)
	}

	rc := r.opts.Config.Recording
	device, err := audio.FindDevice(actx, rc.Device)
	if err != nil {
		return err
	}
	rec := recorder.New(actx, recorder.Options{
		Format:     rc.Format,
		SampleRate: rc.SampleRate,
		Device:     device,
	})
	if err := rec.Start(); err != nil {
		return fmt.Errorf("recording error: %w", err)
	}

	r.printf("  Recording for %s, speak now", r.opts.RecordFor)
	var peak float64
	deadline := time.Now().Add(r.opts.RecordFor)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		peak = max(peak, rec.Level())
		r.printf(".")
	}
	r.printf(" done\n")

	recording, err := rec.Stop()
	if err != nil {
		return fmt.Errorf("recording error: %w", err)
	}
	r.recording = recording
	r.printf("  Recorded %.1fs, %.1f KB %s, peak level %.3f\n",
		recording.Duration.Seconds(), float64(recording.SizeBytes)/1024, recording.Format, peak)
	if peak < rc.SilenceThreshold {
		r.printf("  Warning: level stayed below the silence threshold (%.3f)\n", rc.SilenceThreshold)
	}
	r.printf("  PASS: microphone captured audio\n")
	return nil
}

func checkTranscription(ctx context.Context, r *run) error {
	cfg := r.opts.Config.Transcribe
	t, err := transcriber.New(cfg)
	if err != nil {
		return err
	}
	if r.recording == nil {
		// Without a recording only reachability can be checked.
		if cfg.Backend != "json" && cfg.Backend != "multipart" {
			return errors.New("no recording to upload")
		}
		return probe(ctx, r, healthURL(cfg.URL))
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutMS)*time.Millisecond+probeTimeout)
	defer cancel()
	res, err := t.Transcribe(ctx, r.recording.Path)
	if err != nil {
		return errors.New(transcriber.Message(err))
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	r.printf("  Transcribed text: %s\n", text)
	if res.Metrics != nil {
		r.printf("  Round trip %dms\n", res.Metrics.Total.Milliseconds())
	}

	if r.opts.In == nil {
		r.printf("  PASS: transcription returned\n")
		return nil
	}
	r.printf("  Is this correct? [y/n]: ")
	confirm, _ := bufio.NewReader(r.opts.In).ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))
	if confirm != "y" && confirm != "yes" {
		return errors.New("transcription not confirmed")
	}
	r.printf("  PASS: transcription verified by user\n")
	return nil
}

func skipTranslation(r *run) string {
	if r.opts.Config.Translate.Backend == "none" {
		return "translation is disabled"
	}
	return ""
}

func checkTranslation(ctx context.Context, r *run) error {
	t, err := translator.New(r.opts.Config.Translate)
	if err != nil {
		return err
	}
	target := r.opts.Config.DefaultTarget
	if target == "" || target == "en" {
		target = "es"
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	got, err := t.Translate(ctx, "Hello", "en", target)
	if err != nil {
		return err
	}
	r.printf("  Hello -> %s: %s\n", target, got.TranslatedText)
	r.printf("  PASS: translation returned\n")
	return nil
}

func checkDetect(ctx context.Context, r *run) error {
	return probe(ctx, r, strings.TrimRight(r.opts.Config.Detect.URL, "/")+"/health")
}

func skipSpeech(r *run) string {
	if !r.opts.Config.Speech.Enabled {
		return "spoken output is disabled"
	}
	return ""
}

func checkSpeech(_ context.Context, r *run) error {
	s, err := speech.NewExec(r.opts.Config.Speech.Command)
	if err != nil {
		return err
	}
	path, err := exec.LookPath(s.Program())
	if err != nil {
		return fmt.Errorf("%s not found on PATH", s.Program())
	}
	r.printf("  PASS: %s\n", path)
	return nil
}

func checkClipboard(_ context.Context, r *run) error {
	if !clipboard.Available() {
		return errors.New("no clipboard helper found (install xclip, xsel or wl-clipboard)")
	}
	r.printf("  PASS: clipboard helper present\n")
	return nil
}

func probe(ctx context.Context, r *run, url string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	status, rtt, err := transcriber.NewTracedClient(probeTimeout).Probe(ctx, url)
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", url, err)
	}
	if status >= 400 {
		return fmt.Errorf("%s answered %d", url, status)
	}
	r.printf("  PASS: %s answered %d in %dms\n", url, status, rtt.Milliseconds())
	return nil
}

// healthURL maps an upload endpoint to the health route on the same server.
func healthURL(endpoint string) string {
	dir, _ := path.Split(endpoint)
	if dir == "" || strings.HasSuffix(dir, "//") {
		return strings.TrimRight(endpoint, "/") + "/health"
	}
	return dir + "health"
}
