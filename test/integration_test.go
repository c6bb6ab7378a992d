//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"chatterbridge/server"
	"chatterbridge/transcriber"
)

var (
	testBinary string
	backendURL string
)

func TestMain(m *testing.M) {
	testBinary = os.Getenv("CHATTERBRIDGE_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "CHATTERBRIDGE_TEST_BIN not set; build the binary and point the variable at it")
		os.Exit(1)
	}

	if err := os.MkdirAll("data", 0755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	wavs := map[string]func(int) int16{
		"silence.wav": func(int) int16 { return 0 },
		"tone.wav": func(i int) int16 {
			return int16(9000 * math.Sin(2*math.Pi*440*float64(i)/16000))
		},
	}
	for name, gen := range wavs {
		if err := writeWAV(filepath.Join("data", name), 16000, 1.0, gen); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	srv, err := server.New(server.Options{Logger: zerolog.Nop()})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	backend := httptest.NewServer(srv.Handler())
	backendURL = backend.URL

	code := m.Run()
	backend.Close()
	for name := range wavs {
		os.Remove(filepath.Join("data", name))
	}
	os.Exit(code)
}

func writeWAV(path string, sampleRate int, durationS float64, sample func(int) int16) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i := 0; i < numSamples; i++ {
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(sample(i)))
	}
	return os.WriteFile(path, buf, 0644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

// runHeadless drives the binary against the in-process backend and returns
// its stdout and the log directory.
func runHeadless(t *testing.T, stdin, wav string, env ...string) (out, logDir string) {
	t.Helper()
	logDir = t.TempDir()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("default_target: es\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := exec.Command(testBinary,
		"--config", configPath,
		"--logpath", logDir,
		"headless", "--wav", wav)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(),
		"CHATTERBRIDGE_TRANSCRIBE_BACKEND=json",
		"CHATTERBRIDGE_TRANSCRIBE_URL="+backendURL+"/transcribe",
		"CHATTERBRIDGE_TRANSLATE_BACKEND=http",
		"CHATTERBRIDGE_TRANSLATE_URL="+backendURL+"/translate",
		"CHATTERBRIDGE_SPEECH_ENABLED=false",
	)
	cmd.Env = append(cmd.Env, env...)

	b, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("chatterbridge exited with error: %v\noutput: %s", err, b)
	}
	return string(b), logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func TestTranscribeAndTranslate(t *testing.T) {
	out, logDir := runHeadless(t,
		cmds("START", "SLEEP 400", "STOP", "WAIT", "TRANSLATE es", "QUIT"),
		"data/tone.wav")

	if !strings.Contains(out, "event recording_start") || !strings.Contains(out, "event recording_stop auto=false") {
		t.Errorf("missing recording events:\n%s", out)
	}
	if !strings.Contains(out, `text="`+transcriber.SimulatedText+`"`) {
		t.Errorf("transcript not rendered:\n%s", out)
	}
	if !strings.Contains(out, `translated="Hola, esta es una transcripción simulada de tu voz."`) {
		t.Errorf("translation not rendered:\n%s", out)
	}

	results := readLog(t, logDir, "results_log.txt")
	if !strings.Contains(results, "transcript\t"+transcriber.SimulatedText) {
		t.Errorf("results_log.txt missing transcript:\n%s", results)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "upload") || !strings.Contains(diag, "backend=json") {
		t.Errorf("diagnostics missing upload entry:\n%s", diag)
	}
}

func TestTwoCyclesResetState(t *testing.T) {
	out, _ := runHeadless(t,
		cmds("START", "SLEEP 200", "STOP", "WAIT", "TRANSLATE fr",
			"START", "STATE", "STOP", "WAIT", "QUIT"),
		"data/tone.wav")
	if !strings.Contains(out, `view state=recording text="" lang="" error="" target=fr translated="" translate_error=""`) {
		t.Errorf("second Start did not reset the result:\n%s", out)
	}
	if strings.Count(out, "event recording_stop") != 2 {
		t.Errorf("expected two stops:\n%s", out)
	}
}

func TestStopWithoutStartMakesNoRequest(t *testing.T) {
	out, logDir := runHeadless(t, cmds("STOP", "WAIT", "QUIT"), "data/tone.wav")
	if strings.Contains(out, "event recording_stop") {
		t.Errorf("unexpected stop event:\n%s", out)
	}
	if diag := readLog(t, logDir, "diagnostics_log.txt"); strings.Contains(diag, "upload") {
		t.Errorf("stop without start uploaded:\n%s", diag)
	}
}

func TestServerFailureShowsMessage(t *testing.T) {
	out, _ := runHeadless(t,
		cmds("START", "SLEEP 200", "STOP", "WAIT", "QUIT"),
		"data/silence.wav",
		"CHATTERBRIDGE_TRANSCRIBE_URL="+backendURL+"/missing")
	if !strings.Contains(out, "view state=error") {
		t.Errorf("expected error state:\n%s", out)
	}
	if strings.Contains(out, `view state=error text="H`) {
		t.Errorf("text not cleared on failure:\n%s", out)
	}
}

func TestUnknownLanguage(t *testing.T) {
	out, _ := runHeadless(t,
		cmds("START", "SLEEP 200", "STOP", "WAIT", "TRANSLATE xx", "QUIT"),
		"data/tone.wav")
	if !strings.Contains(out, "error translate: unknown target language") {
		t.Errorf("expected unknown language error:\n%s", out)
	}
}
