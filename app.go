package main

import (
	"fmt"
	"time"

	"chatterbridge/audio"
	"chatterbridge/config"
	"chatterbridge/flow"
	"chatterbridge/recorder"
	"chatterbridge/signdetect"
	"chatterbridge/speech"
	"chatterbridge/transcriber"
	"chatterbridge/translator"
)

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func newRecorder(actx audio.Context, cfg config.RecordingConfig) (*recorder.Recorder, error) {
	device, err := audio.FindDevice(actx, cfg.Device)
	if err != nil {
		return nil, err
	}
	return recorder.New(actx, recorder.Options{
		Format:      cfg.Format,
		SampleRate:  cfg.SampleRate,
		Device:      device,
		MaxDuration: ms(cfg.MaxDurationMS),
	}), nil
}

// speechOptions builds the backends the speech screen talks to.
func speechOptions(cfg config.Config, rec flow.Recorder, sink flow.EventSink) (flow.SpeechOptions, error) {
	trans, err := transcriber.New(cfg.Transcribe)
	if err != nil {
		return flow.SpeechOptions{}, err
	}
	tr, err := translator.New(cfg.Translate)
	if err != nil {
		return flow.SpeechOptions{}, err
	}
	speaker, err := speech.New(cfg.Speech.Enabled, cfg.Speech.Command)
	if err != nil {
		return flow.SpeechOptions{}, fmt.Errorf("speech command: %w", err)
	}
	rc := cfg.Recording
	return flow.SpeechOptions{
		Recorder:         rec,
		Transcriber:      trans,
		Translator:       tr,
		Speaker:          speaker,
		Sink:             sink,
		DefaultTarget:    cfg.DefaultTarget,
		Format:           rc.Format,
		SilenceThreshold: rc.SilenceThreshold,
		SilenceWarn:      ms(rc.SilenceWarnMS),
		SilenceAutoStop:  ms(rc.SilenceAutoStopMS),
		MaxDuration:      ms(rc.MaxDurationMS),
	}, nil
}

func newDetector(cfg config.DetectConfig) signdetect.Detector {
	return signdetect.NewHTTP(cfg.URL, ms(cfg.TimeoutMS))
}

// signSource forces video uploads when detect.mode is video; otherwise the
// file extension decides.
func signSource(cfg config.DetectConfig, path string) signdetect.FileSource {
	src := signdetect.FileSource{Path: path}
	if kind, err := signdetect.ParseKind(cfg.Mode); err == nil && kind == signdetect.Video {
		src.Kind = &kind
	}
	return src
}
