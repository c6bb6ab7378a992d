package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"chatterbridge/signdetect"
	"chatterbridge/transcriber"
	"chatterbridge/translator"
)

const (
	msgNoAudio    = "No audio file provided"
	msgNoFile     = "No file selected"
	msgBadBase64  = "audioBase64 is not valid base64"
	msgNoSignFile = "No file provided"
)

type errorBody struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
}

// transcribeBody answers both client shapes: the JSON screen reads text and
// detectedLanguage, the multipart screen reads success and transcribed_text.
type transcribeBody struct {
	Success          bool    `json:"success"`
	Text             string  `json:"text"`
	TranscribedText  string  `json:"transcribed_text"`
	DetectedLanguage string  `json:"detectedLanguage"`
	Confidence       float64 `json:"confidence"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  HealthStatus,
		"message": HealthMessage,
	})
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	var (
		audio []byte
		ext   string
	)
	if isJSON(r) {
		var req struct {
			AudioBase64 string `json:"audioBase64"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.AudioBase64 == "" {
			writeError(w, http.StatusBadRequest, msgNoAudio)
			return
		}
		data, err := decodeBase64(req.AudioBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, msgBadBase64)
			return
		}
		audio, ext = data, sniffAudioExt(data)
	} else {
		data, name, status, msg := readUpload(r, s.opts.MaxUploadBytes, "audio", "file")
		if status != 0 {
			writeError(w, status, msg)
			return
		}
		audio, ext = data, strings.ToLower(filepath.Ext(name))
		if ext == "" {
			ext = sniffAudioExt(data)
		}
	}
	s.metrics.observeUpload(r.Context(), "audio", len(audio))

	path, err := s.saveTemp(audio, ext)
	if err != nil {
		s.transcribeFailed(w, r, err)
		return
	}
	defer os.Remove(path)

	res, err := s.opts.Transcriber.Transcribe(r.Context(), path)
	if err != nil {
		s.transcribeFailed(w, r, err)
		return
	}
	lang := res.DetectedLanguage
	if lang == "" {
		lang = transcriber.AutoDetect
	}
	writeJSON(w, http.StatusOK, transcribeBody{
		Success:          true,
		Text:             res.Text,
		TranscribedText:  res.Text,
		DetectedLanguage: lang,
		Confidence:       res.Confidence,
	})
}

func (s *Server) transcribeFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("transcribe failed")
	ok := false
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Success: &ok,
		Error:   "An error occurred: " + transcriber.Message(err),
	})
}

// decodeBase64 accepts plain base64 or a data URL.
func decodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	return data, nil
}

func sniffAudioExt(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return ".wav"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return ".flac"
	case bytes.HasPrefix(data, []byte("OggS")):
		return ".ogg"
	case bytes.HasPrefix(data, []byte("ID3")):
		return ".mp3"
	}
	return ".m4a"
}

// readUpload returns the first file part found under fields. A non-zero
// status means the request must be rejected with msg.
func readUpload(r *http.Request, limit int64, fields ...string) (data []byte, name string, status int, msg string) {
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", http.StatusRequestEntityTooLarge, "upload too large"
		}
		return nil, "", http.StatusBadRequest, msgNoAudio
	}
	defer r.MultipartForm.RemoveAll()

	for _, field := range fields {
		files := r.MultipartForm.File[field]
		if len(files) == 0 {
			continue
		}
		fh := files[0]
		f, err := fh.Open()
		if err != nil {
			return nil, "", http.StatusBadRequest, err.Error()
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, "", http.StatusBadRequest, err.Error()
		}
		return data, fh.Filename, 0, ""
	}
	// A part with an empty filename is parsed as a plain value.
	for _, field := range fields {
		if _, ok := r.MultipartForm.Value[field]; ok {
			return nil, "", http.StatusBadRequest, msgNoFile
		}
	}
	return nil, "", http.StatusBadRequest, msgNoAudio
}

func (s *Server) saveTemp(data []byte, ext string) (string, error) {
	dir := s.opts.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "chatterbridge-upload-"+uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translator.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Q) == "" || strings.TrimSpace(req.Target) == "" {
		writeError(w, http.StatusBadRequest, "q and target are required")
		return
	}
	tr, err := s.opts.Translator.Translate(r.Context(), req.Q, req.Source, req.Target)
	switch {
	case errors.Is(err, translator.ErrNoEntry):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("translate failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var resp translator.Response
	resp.Data.Translations.TranslatedText = tr.TranslatedText
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDetect(kind signdetect.Kind) http.HandlerFunc {
	classifier := s.opts.Image
	if kind == signdetect.Video {
		classifier = s.opts.Video
	}
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
		data, _, status, msg := readUpload(r, s.opts.MaxUploadBytes, "file")
		if status != 0 {
			if msg == msgNoAudio {
				msg = msgNoSignFile
			}
			writeError(w, status, msg)
			return
		}
		s.metrics.observeUpload(r.Context(), kind.String(), len(data))

		res, err := classifier.Classify(data)
		if err != nil {
			s.logger.Error().Err(err).Str("kind", kind.String()).Msg("detect failed")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
