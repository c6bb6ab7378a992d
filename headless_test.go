package main

import (
	"bytes"
	"context"
	"math"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"chatterbridge/config"
	"chatterbridge/encoder"
	"chatterbridge/server"
	"chatterbridge/transcriber"
)

func writeToneWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := encoder.NewWav(f, 16000)
	block := make([]int16, 16000/2)
	for i := range block {
		block[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	if err := enc.EncodeBlock(block); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func headlessConfig(t *testing.T) config.Config {
	t.Helper()
	srv, err := server.New(server.Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	backend := httptest.NewServer(srv.Handler())
	t.Cleanup(backend.Close)

	cfg := config.Default()
	cfg.DefaultTarget = "es"
	cfg.Transcribe.URL = backend.URL + "/transcribe"
	cfg.Translate.URL = backend.URL + "/translate"
	return cfg
}

func TestHeadlessRoundTrip(t *testing.T) {
	cfg := headlessConfig(t)
	in := strings.NewReader("START\nSLEEP 50\nSTOP\nWAIT\nTRANSLATE\nQUIT\n")
	var out bytes.Buffer

	if err := runHeadless(context.Background(), cfg, writeToneWAV(t), false, in, &out); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{
		"event recording_start",
		"event recording_stop auto=false",
		`view state=transcribing`,
		`view state=result text="` + transcriber.SimulatedText + `"`,
		`translated="Hola, esta es una transcripción simulada de tu voz."`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestHeadlessCommandErrors(t *testing.T) {
	cfg := headlessConfig(t)
	in := strings.NewReader("TRANSLATE zz\nbogus\n")
	var out bytes.Buffer

	if err := runHeadless(context.Background(), cfg, writeToneWAV(t), false, in, &out); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "error translate: unknown target language") {
		t.Errorf("missing language error:\n%s", got)
	}
	if !strings.Contains(got, `error unknown command "BOGUS"`) {
		t.Errorf("missing command error:\n%s", got)
	}
	// EOF prints the final view.
	if !strings.Contains(got, `view state=idle text="" lang="" error="" target=es`) {
		t.Errorf("missing final view:\n%s", got)
	}
}

func TestHeadlessMissingWAV(t *testing.T) {
	err := runHeadless(context.Background(), config.Default(), filepath.Join(t.TempDir(), "nope.wav"), false, strings.NewReader(""), &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected an error for a missing wav")
	}
}
