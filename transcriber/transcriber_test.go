package transcriber

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chatterbridge/config"
)

func writeRecording(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestJSONServerSuccess(t *testing.T) {
	audio := []byte("RIFF....WAVEfmt fake audio")
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var req jsonRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got, _ := base64.StdEncoding.DecodeString(req.AudioBase64)
		if string(got) != string(audio) {
			t.Errorf("audio payload mismatch")
		}
		json.NewEncoder(w).Encode(map[string]any{"text": "hola mundo", "detectedLanguage": "es"})
	}))
	defer srv.Close()

	res, err := NewJSONServer(srv.URL, time.Second).Transcribe(context.Background(), writeRecording(t, "a.wav", audio))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hola mundo" || res.DetectedLanguage != "es" {
		t.Errorf("result = %+v", res)
	}
	if res.Metrics == nil || res.Metrics.Total <= 0 {
		t.Errorf("expected metrics, got %+v", res.Metrics)
	}
	if calls != 1 {
		t.Errorf("server saw %d requests, want 1", calls)
	}
}

func TestJSONServerDefaultsLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"text":"hi"}`)
	}))
	defer srv.Close()

	res, err := NewJSONServer(srv.URL, time.Second).Transcribe(context.Background(), writeRecording(t, "a.wav", []byte("x")))
	if err != nil {
		t.Fatal(err)
	}
	if res.DetectedLanguage != AutoDetect {
		t.Errorf("DetectedLanguage = %q, want %q", res.DetectedLanguage, AutoDetect)
	}
}

func TestJSONServerErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"error body on 200", 200, `{"error":"audio too short"}`, "audio too short"},
		{"error body on 500", 500, `{"error":"model offline"}`, "model offline"},
		{"no message", 502, `bad gateway`, DefaultErrorMessage},
		{"empty error", 400, `{}`, DefaultErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewJSONServer(srv.URL, time.Second).Transcribe(context.Background(), writeRecording(t, "a.wav", []byte("x")))
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("got %v, want *APIError", err)
			}
			if apiErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
			if Message(err) != tt.wantMsg {
				t.Errorf("Message(err) = %q", Message(err))
			}
			if calls != 1 {
				t.Errorf("expected a single attempt, server saw %d", calls)
			}
		})
	}
}

func TestMultipartServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		if header.Filename != "audio.flac" {
			t.Errorf("filename = %q", header.Filename)
		}
		if ct := header.Header.Get("Content-Type"); ct != "audio/flac" {
			t.Errorf("part content type = %q", ct)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "fLaC-data" {
			t.Errorf("payload = %q", data)
		}
		io.WriteString(w, `{"success":true,"transcribed_text":"Hello, this is a test.","confidence":0.9}`)
	}))
	defer srv.Close()

	res, err := NewMultipartServer(srv.URL, time.Second).Transcribe(context.Background(), writeRecording(t, "rec.flac", []byte("fLaC-data")))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "Hello, this is a test." || res.Confidence != 0.9 {
		t.Errorf("result = %+v", res)
	}
}

func TestMultipartServerFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"missing file", 400, `{"error":"No audio file provided"}`, "No audio file provided"},
		{"success false", 200, `{"success":false,"error":"An error occurred: boom"}`, "An error occurred: boom"},
		{"success false no message", 200, `{"success":false}`, DefaultErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewMultipartServer(srv.URL, time.Second).Transcribe(context.Background(), writeRecording(t, "a.wav", []byte("x")))
			if got := Message(err); got != tt.wantMsg {
				t.Errorf("Message = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestTransportErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewJSONServer(url, time.Second).Transcribe(context.Background(), writeRecording(t, "a.wav", []byte("x")))
	if err == nil {
		t.Fatal("expected transport error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatal("transport failure should not be an APIError")
	}
	if Message(err) == "" {
		t.Error("expected non-empty message")
	}
}

func TestCancelledContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := NewMultipartServer(srv.URL, 5*time.Second).Transcribe(ctx, writeRecording(t, "a.wav", []byte("x")))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestOpenAICompatible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if r.FormValue("model") != "whisper-1" {
			t.Errorf("model = %q", r.FormValue("model"))
		}
		if r.FormValue("language") != "fr" {
			t.Errorf("language = %q", r.FormValue("language"))
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"task":"transcribe","language":"french","duration":1.5,"text":"bonjour","segments":[{"avg_logprob":-0.1},{"avg_logprob":-0.3}]}`)
	}))
	defer srv.Close()

	o := newOpenAICompatible("openai", "sk-test", srv.URL+"/v1", "whisper-1", "fr", time.Second)
	res, err := o.Transcribe(context.Background(), writeRecording(t, "a.wav", []byte("x")))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "bonjour" || res.DetectedLanguage != "french" {
		t.Errorf("result = %+v", res)
	}
	if res.Confidence <= 0.8 || res.Confidence >= 0.9 {
		t.Errorf("Confidence = %v, want exp(-0.2)", res.Confidence)
	}
}

func TestOpenAIErrorMapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Invalid API key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	o := newOpenAICompatible("groq", "bad", srv.URL+"/v1", "m", "", time.Second)
	_, err := o.Transcribe(context.Background(), writeRecording(t, "a.wav", []byte("x")))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "Invalid API key" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestMockPicksFromPhrases(t *testing.T) {
	phrases := []string{"one", "two", "three"}
	m := NewMock(phrases, rand.New(rand.NewSource(1)))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		res, err := m.Transcribe(context.Background(), "ignored")
		if err != nil {
			t.Fatal(err)
		}
		seen[res.Text] = true
	}
	for text := range seen {
		if text != "one" && text != "two" && text != "three" {
			t.Errorf("unexpected phrase %q", text)
		}
	}
	if len(seen) < 2 {
		t.Errorf("expected variety, got %v", seen)
	}
}

func TestMockDelayHonorsContext(t *testing.T) {
	m := NewMock([]string{SimulatedText}, nil).WithDelay(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := m.Transcribe(ctx, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		backend string
		name    string
	}{
		{"json", "json"},
		{"multipart", "multipart"},
		{"openai", "openai"},
		{"groq", "groq"},
		{"mock", "mock"},
	}
	for _, tt := range tests {
		tr, err := New(config.TranscribeConfig{Backend: tt.backend, URL: "http://localhost", APIKey: "k"})
		if err != nil {
			t.Fatalf("New(%q): %v", tt.backend, err)
		}
		if tr.Name() != tt.name {
			t.Errorf("Name() = %q, want %q", tr.Name(), tt.name)
		}
	}
	if _, err := New(config.TranscribeConfig{Backend: "telepathy"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestFakeRecordsCalls(t *testing.T) {
	f := NewFake("hi", nil)
	release := f.Block()
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Transcribe(context.Background(), "/tmp/a.wav")
	}()
	time.Sleep(10 * time.Millisecond)
	if got := f.Calls(); len(got) != 1 || got[0] != "/tmp/a.wav" {
		t.Fatalf("Calls = %v", got)
	}
	release()
	<-done
}
