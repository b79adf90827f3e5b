package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"video_social_generator/config"
	"video_social_generator/pipeline"
	"video_social_generator/transcript"
)

const apiVersion = "1.0.0"

// Generator runs batches; *pipeline.Orchestrator satisfies it.
type Generator interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	Stream(ctx context.Context, req pipeline.Request) <-chan pipeline.Event
}

// Transcripts serves cached transcripts; *transcript.Cache satisfies it.
type Transcripts interface {
	Get(ctx context.Context, videoID, language string, refresh bool) (string, error)
}

type Server struct {
	gen         Generator
	transcripts Transcripts
	cfg         config.Config
	cors        *regexp.Regexp
	heartbeat   time.Duration
	logger      *slog.Logger
}

func New(gen Generator, transcripts Transcripts, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if gen == nil {
		return nil, errors.New("generator required")
	}
	if transcripts == nil {
		return nil, errors.New("transcript source required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cors, err := regexp.Compile(`^(?:` + cfg.CORSOriginRegex + `)$`)
	if err != nil {
		return nil, fmt.Errorf("cors origin regex: %w", err)
	}
	heartbeat := cfg.HeartbeatInterval.Std()
	if heartbeat <= 0 {
		heartbeat = 20 * time.Second
	}
	return &Server{
		gen:         gen,
		transcripts: transcripts,
		cfg:         cfg,
		cors:        cors,
		heartbeat:   heartbeat,
		logger:      logger,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("GET /generate/stream", s.handleGenerateStream)
	mux.HandleFunc("GET /transcript", s.handleTranscript)
	return s.logMiddleware(s.recoverMiddleware(s.corsMiddleware(mux)))
}

// --- Helpers ---

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func (s *Server) cacheStats() (transcript.CacheStats, bool) {
	st, ok := s.transcripts.(interface{ Stats() transcript.CacheStats })
	if !ok {
		return transcript.CacheStats{}, false
	}
	return st.Stats(), true
}
