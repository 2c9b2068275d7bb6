package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-analyze/analysis"
	"github.com/RyanBlaney/sonido-analyze/logging"
	"github.com/RyanBlaney/sonido-analyze/transcode"
)

// Config holds HTTP service settings
type Config struct {
	Addr           string        `json:"addr"`
	AnalyzeTimeout time.Duration `json:"analyze_timeout"`
	MaxUploadBytes int64         `json:"max_upload_bytes"`
}

// DefaultConfig returns the service defaults
func DefaultConfig() Config {
	return Config{
		Addr:           ":3001",
		AnalyzeTimeout: 2 * time.Minute,
		MaxUploadBytes: 100 << 20,
	}
}

// Server exposes the analyzer over HTTP
type Server struct {
	config   Config
	analyzer *analysis.Analyzer
	decoder  *transcode.Decoder
	logger   logging.Logger
}

// New creates a server. Zero config values take their defaults.
func New(config Config, analyzer *analysis.Analyzer, decoder *transcode.Decoder) *Server {
	defaults := DefaultConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.AnalyzeTimeout <= 0 {
		config.AnalyzeTimeout = defaults.AnalyzeTimeout
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaults.MaxUploadBytes
	}

	return &Server{
		config:   config,
		analyzer: analyzer,
		decoder:  decoder,
		logger: logging.WithFields(logging.Fields{
			"component": "server",
		}),
	}
}

// WithLogger returns a copy of the server that logs to logger
func (s *Server) WithLogger(logger logging.Logger) *Server {
	clone := *s
	clone.logger = logger
	return &clone
}

// Config returns the server configuration
func (s *Server) Config() Config {
	return s.config
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/healthz", s.handleHealth)
	return withCORS(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Listening", logging.Fields{"addr": s.config.Addr})
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type outcome struct {
	result *analysis.AnalysisResult
	err    error
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	requestID := uuid.NewString()
	logger := s.logger.WithFields(logging.Fields{"request_id": requestID})
	w.Header().Set("X-Request-ID", requestID)

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "no audio file provided")
		return
	}
	defer file.Close()

	logger = logger.WithFields(logging.Fields{
		"filename": header.Filename,
		"size":     header.Size,
	})

	path, cleanup, err := transcode.SpoolToTemp(s.decoder.Config().TempDir, file)
	if err != nil {
		logger.Error(err, "Failed to spool upload")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.AnalyzeTimeout)
	defer cancel()

	// The worker owns the spooled file so it is removed even when the
	// request gives up first.
	done := make(chan outcome, 1)
	go func() {
		defer cleanup()
		done <- s.analyze(ctx, path, logger)
	}()

	select {
	case out := <-done:
		if out.err != nil {
			status := statusFor(out.err)
			if status == http.StatusInternalServerError {
				logger.Error(out.err, "Analysis request failed")
			} else {
				logger.Warn("Analysis request rejected", logging.Fields{"error": out.err.Error()})
			}
			writeError(w, status, out.err.Error())
			return
		}
		writeJSON(w, http.StatusOK, out.result)
	case <-ctx.Done():
		logger.Warn("Analysis abandoned", logging.Fields{"timeout": s.config.AnalyzeTimeout.String()})
		writeError(w, http.StatusServiceUnavailable, "analysis timed out")
	}
}

func (s *Server) analyze(ctx context.Context, path string, logger logging.Logger) outcome {
	audio, err := s.decoder.WithLogger(logger).DecodeFileContext(ctx, path)
	if err != nil {
		return outcome{err: &decodeError{err: err}}
	}
	result, err := s.analyzer.WithLogger(logger).AnalyzeAudio(audio)
	return outcome{result: result, err: err}
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("could not decode audio: %v", e.err)
}

func (e *decodeError) Unwrap() error {
	return e.err
}

func statusFor(err error) int {
	var decodeErr *decodeError
	switch {
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrEmptySignal), errors.Is(err, analysis.ErrSignalTooShort):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analysis.ErrInvalidConfiguration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
