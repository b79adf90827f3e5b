package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video_social_generator/config"
	"video_social_generator/generator"
	"video_social_generator/pipeline"
	"video_social_generator/transcript"
)

type fakeGen struct {
	mu       sync.Mutex
	runReq   pipeline.Request
	result   *pipeline.Result
	err      error
	events   []pipeline.Event
	delay    time.Duration
	panicMsg string
}

func (f *fakeGen) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.mu.Lock()
	f.runReq = req
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.result, f.err
}

func (f *fakeGen) Stream(ctx context.Context, req pipeline.Request) <-chan pipeline.Event {
	f.mu.Lock()
	f.runReq = req
	f.mu.Unlock()
	out := make(chan pipeline.Event)
	go func() {
		defer close(out)
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return
			}
		}
		for _, ev := range f.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (f *fakeGen) lastRequest() pipeline.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runReq
}

type fakeTranscripts struct {
	text    string
	err     error
	refresh bool
	lang    string
}

func (f *fakeTranscripts) Get(_ context.Context, _, language string, refresh bool) (string, error) {
	f.refresh = refresh
	f.lang = language
	return f.text, f.err
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.LLM.Provider = "mock"
	return cfg
}

func newTestServer(t *testing.T, gen Generator, tr Transcripts, cfg config.Config) http.Handler {
	t.Helper()
	s, err := New(gen, tr, cfg, nil)
	require.NoError(t, err)
	return s.Routes()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestRootAndHealth(t *testing.T) {
	h := newTestServer(t, &fakeGen{}, &fakeTranscripts{}, testConfig())

	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	root := decode[map[string]any](t, rec)
	assert.Equal(t, "Social Media Content Generator API", root["message"])
	assert.Equal(t, "1.0.0", root["version"])

	rec = do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "healthy", "api_key_configured": false}, decode[map[string]any](t, rec))

	rec = do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerate_Success(t *testing.T) {
	gen := &fakeGen{result: &pipeline.Result{
		VideoID:           "abc123XYZ_",
		Posts:             []generator.Post{{Platform: "LinkedIn", Content: "**hi**"}},
		TranscriptPreview: "preview",
	}}
	h := newTestServer(t, gen, &fakeTranscripts{}, testConfig())

	rec := do(t, h, http.MethodPost, "/generate", `{"video_id":"abc123XYZ_"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"video_id":"abc123XYZ_","posts":[{"platform":"LinkedIn","content":"**hi**"}],"transcript_preview":"preview"}`, rec.Body.String())
	assert.Equal(t, []string{"LinkedIn", "Instagram"}, gen.lastRequest().Platforms)
	assert.Equal(t, "en", gen.lastRequest().Language)

	rec = do(t, h, http.MethodPost, "/generate", `{"video_id":"abc123XYZ_","platforms":["X"],"language":"fr","render_html":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[generateResp](t, rec)
	assert.Equal(t, "<p><strong>hi</strong></p>\n", resp.Posts[0].HTML)
	assert.Equal(t, []string{"X"}, gen.lastRequest().Platforms)
	assert.Equal(t, "fr", gen.lastRequest().Language)
}

func TestGenerate_BadRequests(t *testing.T) {
	h := newTestServer(t, &fakeGen{}, &fakeTranscripts{}, testConfig())

	rec := do(t, h, http.MethodPost, "/generate", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/generate", `{"platforms":["X"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "video_id is required", decode[errorBody](t, rec).Detail)

	rec = do(t, h, http.MethodGet, "/generate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"invalid", &transcript.Error{Kind: transcript.InvalidInput, Message: "bad id"}, 400, "Invalid video ID: bad id"},
		{"not found", &transcript.Error{Kind: transcript.NotFound, Message: "gone"}, 404, "Video not found: gone"},
		{"unavailable", &transcript.Error{Kind: transcript.Unavailable, Message: "timeout"}, 503, "Network error: timeout"},
		{"forbidden", &transcript.Error{Kind: transcript.Forbidden, Message: "blocked"}, 403, "Access denied: blocked"},
		{"unknown", &transcript.Error{Kind: transcript.Unknown, Message: "odd"}, 500, "Error fetching transcript: odd"},
		{"generation", &generator.BatchError{Message: "quota"}, 500, "Error generating content: quota"},
		{"other", errors.New("boom"), 500, "Unexpected error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeGen{err: tt.err}, &fakeTranscripts{}, testConfig())
			rec := do(t, h, http.MethodPost, "/generate", `{"video_id":"abc123XYZ_"}`)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.detail, decode[errorBody](t, rec).Detail)
		})
	}
}

func TestGenerate_PanicIsRecovered(t *testing.T) {
	h := newTestServer(t, &fakeGen{panicMsg: "kaboom"}, &fakeTranscripts{}, testConfig())
	rec := do(t, h, http.MethodPost, "/generate", `{"video_id":"abc123XYZ_"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Unexpected server error", decode[errorBody](t, rec).Detail)
}

func TestTranscriptEndpoint(t *testing.T) {
	tr := &fakeTranscripts{text: "héllo world"}
	h := newTestServer(t, &fakeGen{}, tr, testConfig())

	rec := do(t, h, http.MethodGet, "/transcript?video_id=abc123XYZ_&refresh=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"video_id":"abc123XYZ_","language":"en","transcript":"héllo world","length":11}`, rec.Body.String())
	assert.True(t, tr.refresh)

	rec = do(t, h, http.MethodGet, "/transcript?video_id=abc123XYZ_&language=es", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, tr.refresh)
	assert.Equal(t, "es", tr.lang)

	rec = do(t, h, http.MethodGet, "/transcript?video_id=abc123XYZ_&refresh=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/transcript", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tr.err = &transcript.Error{Kind: transcript.NotFound, Message: "no captions"}
	rec = do(t, h, http.MethodGet, "/transcript?video_id=abc123XYZ_", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Video not found: no captions", decode[errorBody](t, rec).Detail)
}

func TestStream_Framing(t *testing.T) {
	gen := &fakeGen{events: []pipeline.Event{
		{Name: pipeline.EventStatus, Data: pipeline.StatusData{Stage: pipeline.StageStarting}},
		{Name: pipeline.EventPost, Data: generator.Post{Platform: "LinkedIn", Content: "hi"}},
		{Name: pipeline.EventDone, Data: pipeline.DoneData{}},
	}}
	h := newTestServer(t, gen, &fakeTranscripts{}, testConfig())

	rec := do(t, h, http.MethodGet, "/generate/stream?video_id=abc123XYZ_&platforms=LinkedIn,Twitter&platforms=Instagram", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	want := "retry: 2000\n\n" +
		"event: status\ndata: {\"stage\":\"starting\"}\n\n" +
		"event: post\ndata: {\"platform\":\"LinkedIn\",\"content\":\"hi\"}\n\n" +
		"event: done\ndata: {}\n\n"
	assert.Equal(t, want, rec.Body.String())
	assert.Equal(t, []string{"LinkedIn", "Twitter", "Instagram"}, gen.lastRequest().Platforms)
	assert.Equal(t, "en", gen.lastRequest().Language)
}

func TestStream_MissingVideoID(t *testing.T) {
	h := newTestServer(t, &fakeGen{}, &fakeTranscripts{}, testConfig())
	rec := do(t, h, http.MethodGet, "/generate/stream", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestStream_HeartbeatWhenIdle(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatInterval = config.Duration(10 * time.Millisecond)
	gen := &fakeGen{
		delay:  80 * time.Millisecond,
		events: []pipeline.Event{{Name: pipeline.EventDone, Data: pipeline.DoneData{}}},
	}
	h := newTestServer(t, gen, &fakeTranscripts{}, cfg)

	rec := do(t, h, http.MethodGet, "/generate/stream?video_id=abc123XYZ_", "")
	body := rec.Body.String()
	ping := strings.Index(body, ": ping\n\n")
	done := strings.Index(body, "event: done\n")
	require.GreaterOrEqual(t, ping, 0, body)
	assert.Less(t, ping, done)
	assert.True(t, strings.HasSuffix(body, "event: done\ndata: {}\n\n"))
}

func TestStream_WithOrchestrator(t *testing.T) {
	orch, err := pipeline.New(&fakeTranscripts{text: "hello"}, stubAgent{}, stubWriter{}, nil)
	require.NoError(t, err)
	h := newTestServer(t, orch, &fakeTranscripts{}, testConfig())

	rec := do(t, h, http.MethodGet, "/generate/stream?video_id=abc123XYZ_&platforms=LinkedIn", "")
	want := "retry: 2000\n\n" +
		"event: status\ndata: {\"stage\":\"starting\"}\n\n" +
		"event: transcript\ndata: {\"preview\":\"hello\",\"length\":5}\n\n" +
		"event: status\ndata: {\"stage\":\"transcript_ready\"}\n\n" +
		"event: status\ndata: {\"stage\":\"generating\",\"platform\":\"LinkedIn\",\"index\":0}\n\n" +
		"event: post\ndata: {\"platform\":\"LinkedIn\",\"content\":\"post for LinkedIn\"}\n\n" +
		"event: status\ndata: {\"stage\":\"done\"}\n\n" +
		"event: done\ndata: {}\n\n"
	assert.Equal(t, want, rec.Body.String())
}

type stubAgent struct{}

func (stubAgent) Run(context.Context, string, []string, string) ([]generator.Post, error) {
	return nil, nil
}

type stubWriter struct{}

func (stubWriter) Generate(_ context.Context, _, platform, _ string) (string, error) {
	return "post for " + platform, nil
}

func TestCORS(t *testing.T) {
	h := newTestServer(t, &fakeGen{}, &fakeTranscripts{}, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/generate", nil)
	req.Header.Set("Origin", "https://my-app.vercel.app")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://my-app.vercel.app", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "content-type", rec.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/generate", nil)
	req.Header.Set("Origin", "https://vercel.app.evil.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, &fakeGen{}, &fakeTranscripts{}, testConfig())
	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "llm_calls_total ")
}

func TestMetricsIncludesCacheStats(t *testing.T) {
	r, err := transcript.NewResolver(stubProvider{}, nil)
	require.NoError(t, err)
	cache := transcript.NewCache(r)
	_, err = cache.Get(context.Background(), "abc123XYZ_", "en", false)
	require.NoError(t, err)

	h := newTestServer(t, &fakeGen{}, cache, testConfig())
	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), "transcript_cache_entries 1\n")
}

type stubProvider struct{}

func (stubProvider) Fetch(context.Context, string, string) ([]transcript.Segment, error) {
	return []transcript.Segment{{Text: "hi"}}, nil
}
