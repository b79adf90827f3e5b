package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"video_social_generator/metrics"
	"video_social_generator/pipeline"
	"video_social_generator/publisher"
	"video_social_generator/transcript"
)

const sseRetry = 2 * time.Second

type generateReq struct {
	VideoID    string    `json:"video_id"`
	Platforms  *[]string `json:"platforms"`
	Language   *string   `json:"language"`
	RenderHTML bool      `json:"render_html"`
}

type postResp struct {
	Platform string `json:"platform"`
	Content  string `json:"content"`
	HTML     string `json:"html,omitempty"`
}

type generateResp struct {
	VideoID           string     `json:"video_id"`
	Posts             []postResp `json:"posts"`
	TranscriptPreview string     `json:"transcript_preview"`
}

type transcriptResp struct {
	VideoID    string `json:"video_id"`
	Language   string `json:"language"`
	Transcript string `json:"transcript"`
	Length     int    `json:"length"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Social Media Content Generator API",
		"version": apiVersion,
		"endpoints": map[string]string{
			"/generate":        "POST - Generate social media content from YouTube video",
			"/generate/stream": "GET - Stream generation progress as Server-Sent Events",
			"/transcript":      "GET - Fetch the full transcript of a video",
			"/health":          "GET - Health check endpoint",
			"/metrics":         "GET - Process counters",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"api_key_configured": s.cfg.APIKeyConfigured(),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	extra := map[string]int64{}
	if st, ok := s.cacheStats(); ok {
		extra["transcript_cache_hits_total"] = st.Hits
		extra["transcript_cache_misses_total"] = st.Misses
		extra["transcript_cache_fetches_total"] = st.Fetches
		extra["transcript_cache_entries"] = int64(st.Entries)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, metrics.Format(metrics.Snapshot(extra)))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateReq
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.VideoID == "" {
		writeError(w, http.StatusBadRequest, "video_id is required")
		return
	}
	preq := pipeline.Request{
		VideoID:   req.VideoID,
		Platforms: s.cfg.DefaultPlatforms,
		Language:  s.cfg.DefaultLanguage,
	}
	if req.Platforms != nil {
		preq.Platforms = *req.Platforms
	}
	if req.Language != nil {
		preq.Language = *req.Language
	}
	s.logger.Info("generate request",
		slog.String("video_id", preq.VideoID),
		slog.Any("platforms", preq.Platforms),
		slog.String("language", preq.Language))

	res, err := s.gen.Run(r.Context(), preq)
	if err != nil {
		status, detail := errorResponse(err)
		writeError(w, status, detail)
		return
	}

	resp := generateResp{VideoID: res.VideoID, TranscriptPreview: res.TranscriptPreview, Posts: make([]postResp, 0, len(res.Posts))}
	for _, p := range res.Posts {
		pr := postResp{Platform: p.Platform, Content: p.Content}
		if req.RenderHTML {
			html, err := publisher.RenderHTML(p.Content)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Unexpected error: "+err.Error())
				return
			}
			pr.HTML = html
		}
		resp.Posts = append(resp.Posts, pr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	videoID := q.Get("video_id")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "video_id is required")
		return
	}
	req := pipeline.Request{
		VideoID:   videoID,
		Platforms: splitPlatforms(q["platforms"]),
		Language:  s.cfg.DefaultLanguage,
	}
	if len(req.Platforms) == 0 {
		req.Platforms = s.cfg.DefaultPlatforms
	}
	if q.Has("language") {
		req.Language = q.Get("language")
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sse := newSSEWriter(w)
	if err := sse.retry(sseRetry); err != nil {
		return
	}
	err := sse.pump(ctx, s.gen.Stream(ctx, req), s.heartbeat)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("stream ended early", slog.String("video_id", videoID), slog.Any("error", err))
	}
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	videoID := q.Get("video_id")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, "video_id is required")
		return
	}
	language := s.cfg.DefaultLanguage
	if q.Has("language") {
		language = q.Get("language")
	}
	refresh := false
	if v := q.Get("refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "refresh must be a boolean")
			return
		}
		refresh = b
	}

	metrics.TranscriptRequests.Add(1)
	text, err := s.transcripts.Get(r.Context(), videoID, language, refresh)
	if err != nil {
		metrics.TranscriptErrors.Add(1)
		writeError(w, transcriptStatus(transcript.KindOf(err)), transcript.Describe(err))
		return
	}
	writeJSON(w, http.StatusOK, transcriptResp{
		VideoID:    videoID,
		Language:   language,
		Transcript: text,
		Length:     pipeline.Length(text),
	})
}

// splitPlatforms accepts repeated and comma-separated values alike.
func splitPlatforms(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
