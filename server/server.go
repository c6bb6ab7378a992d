// Package server is the placeholder backend: simulated transcription,
// phrasebook translation and label-hash sign detection behind the same
// routes the clients call.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"chatterbridge/signdetect"
	"chatterbridge/transcriber"
	"chatterbridge/translator"
)

const (
	HealthStatus  = "healthy"
	HealthMessage = "Speech recognition server is running"
)

// Classifier labels one uploaded image or clip.
type Classifier interface {
	Classify(data []byte) (signdetect.Result, error)
}

type Options struct {
	Transcriber transcriber.Transcriber
	Translator  translator.Translator
	Image       Classifier
	Video       Classifier

	MaxUploadBytes int64
	Metrics        bool
	Version        string
	Logger         zerolog.Logger
	// TempDir receives uploads while they are transcribed; empty means
	// os.TempDir.
	TempDir string
}

type Server struct {
	opts    Options
	logger  zerolog.Logger
	metrics *metrics
	router  chi.Router
}

func New(opts Options) (*Server, error) {
	if opts.Transcriber == nil {
		opts.Transcriber = transcriber.NewMock([]string{transcriber.SimulatedText}, nil)
	}
	if opts.Translator == nil {
		opts.Translator = translator.NewStatic()
	}
	if opts.Image == nil {
		opts.Image = signdetect.NewLabelClassifier(signdetect.Image, nil)
	}
	if opts.Video == nil {
		opts.Video = signdetect.NewLabelClassifier(signdetect.Video, nil)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}

	s := &Server{opts: opts, logger: opts.Logger}
	if opts.Metrics {
		m, err := newMetrics(opts.Version)
		if err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		s.metrics = m
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/transcribe", s.handleTranscribe)
	r.Post("/translate", s.handleTranslate)
	r.Post("/detect-sign", s.handleDetect(signdetect.Image))
	r.Post("/detect-video", s.handleDetect(signdetect.Video))
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.handler)
	}
	s.router = r
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

// Close flushes and stops the meter provider.
func (s *Server) Close(ctx context.Context) error {
	return s.metrics.shutdown(ctx)
}

// ListenAndServe serves on addr until ctx ends, then drains in-flight
// requests for up to grace.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, grace)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener, grace time.Duration) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	s.logger.Info().Msg("shutting down")
	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errc; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		err = errors.Join(err, serveErr)
	}
	return errors.Join(err, s.Close(shutdownCtx))
}
