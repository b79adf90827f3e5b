// Package pipeline turns a video reference and a platform list into posts,
// either as one buffered result or as an ordered stream of progress events.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/oklog/ulid/v2"

	"video_social_generator/generator"
	"video_social_generator/metrics"
	"video_social_generator/transcript"
)

// Transcripts supplies transcript text; *transcript.Cache satisfies it.
type Transcripts interface {
	Get(ctx context.Context, videoID, language string, refresh bool) (string, error)
}

// PostWriter writes one post; *generator.Writer satisfies it.
type PostWriter interface {
	Generate(ctx context.Context, transcript, platform, language string) (string, error)
}

// BatchAgent writes every post of a batch in one call; *generator.Agent satisfies it.
type BatchAgent interface {
	Run(ctx context.Context, transcript string, platforms []string, language string) ([]generator.Post, error)
}

type Request struct {
	VideoID   string
	Platforms []string
	Language  string
}

type Result struct {
	VideoID           string           `json:"video_id"`
	Posts             []generator.Post `json:"posts"`
	TranscriptPreview string           `json:"transcript_preview"`
}

type Orchestrator struct {
	transcripts Transcripts
	agent       BatchAgent
	writer      PostWriter
	logger      *slog.Logger
}

func New(transcripts Transcripts, agent BatchAgent, writer PostWriter, logger *slog.Logger) (*Orchestrator, error) {
	if transcripts == nil {
		return nil, errors.New("transcript source is required")
	}
	if agent == nil {
		return nil, errors.New("batch agent is required")
	}
	if writer == nil {
		return nil, errors.New("post writer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{transcripts: transcripts, agent: agent, writer: writer, logger: logger}, nil
}

func (o *Orchestrator) batchLogger(req Request, mode string) *slog.Logger {
	return o.logger.With(
		slog.String("batch_id", ulid.Make().String()),
		slog.String("mode", mode),
		slog.String("video_id", req.VideoID),
		slog.String("language", req.Language),
	)
}

// Run produces all posts with one agentic call. A transcript failure is
// returned as the *transcript.Error; any generation failure is fatal and no
// partial posts are returned.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	metrics.BatchesBuffered.Add(1)
	log := o.batchLogger(req, "buffered")
	start := time.Now()
	log.Info("batch started", slog.Any("platforms", req.Platforms))

	text, err := o.fetchTranscript(ctx, req)
	if err != nil {
		log.Warn("transcript failed", slog.Any("error", err))
		return nil, err
	}
	log.Info("transcript ready", slog.Int("length", Length(text)))

	posts, err := o.agent.Run(ctx, text, req.Platforms, req.Language)
	if err != nil {
		log.Error("generation failed", slog.Any("error", err), slog.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	metrics.PostsGenerated.Add(int64(len(posts)))
	log.Info("batch finished", slog.Int("posts", len(posts)), slog.Duration("elapsed", time.Since(start)))

	return &Result{VideoID: req.VideoID, Posts: posts, TranscriptPreview: Preview(text)}, nil
}

// Stream runs the batch on its own goroutine and reports progress on the
// returned channel, which is closed when the batch ends. Once ctx is done
// no further events are sent.
func (o *Orchestrator) Stream(ctx context.Context, req Request) <-chan Event {
	metrics.BatchesStreamed.Add(1)
	out := make(chan Event)
	log := o.batchLogger(req, "stream")

	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				metrics.Panics.Add(1)
				log.Error("batch panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
				send(ctx, out, errorEvent(fmt.Sprintf("Unexpected error: %v", r)))
			}
		}()
		start := time.Now()
		if !o.produce(ctx, req, out, log) {
			metrics.StreamsCancelled.Add(1)
			log.Info("batch abandoned", slog.Duration("elapsed", time.Since(start)))
			return
		}
		log.Info("batch finished", slog.Duration("elapsed", time.Since(start)))
	}()
	return out
}

// produce emits the event sequence. It returns false when ctx ended the batch early.
func (o *Orchestrator) produce(ctx context.Context, req Request, out chan<- Event, log *slog.Logger) bool {
	if !send(ctx, out, statusEvent(StageStarting)) {
		return false
	}

	text, err := o.fetchTranscript(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		log.Warn("transcript failed", slog.Any("error", err))
		return send(ctx, out, errorEvent(transcript.Describe(err)))
	}
	if !send(ctx, out, transcriptEvent(text)) || !send(ctx, out, statusEvent(StageTranscriptReady)) {
		return false
	}

	for i, platform := range req.Platforms {
		if !send(ctx, out, generatingEvent(platform, i)) {
			return false
		}
		content, err := o.generate(ctx, text, platform, req.Language)
		if ctx.Err() != nil {
			return false
		}
		if err != nil {
			metrics.PostErrors.Add(1)
			log.Warn("post failed", slog.String("platform", platform), slog.Any("error", err))
			if !send(ctx, out, errorEvent(fmt.Sprintf("Error generating %s: %s", platform, err.Error()))) {
				return false
			}
			continue
		}
		metrics.PostsGenerated.Add(1)
		if !send(ctx, out, postEvent(platform, content)) {
			return false
		}
	}

	return send(ctx, out, statusEvent(StageDone)) && send(ctx, out, doneEvent())
}

func (o *Orchestrator) fetchTranscript(ctx context.Context, req Request) (string, error) {
	metrics.TranscriptRequests.Add(1)
	text, err := o.transcripts.Get(ctx, req.VideoID, req.Language, false)
	if err != nil {
		metrics.TranscriptErrors.Add(1)
	}
	return text, err
}

type generation struct {
	content string
	err     error
	panic   any
}

// generate runs one writer call on a worker goroutine. If ctx ends first the
// result is dropped; the worker still finishes because its channel is buffered.
// A worker panic is re-raised on the caller's goroutine.
func (o *Orchestrator) generate(ctx context.Context, text, platform, language string) (string, error) {
	done := make(chan generation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generation{panic: r}
			}
		}()
		content, err := o.writer.Generate(ctx, text, platform, language)
		done <- generation{content: content, err: err}
	}()

	select {
	case g := <-done:
		if g.panic != nil {
			panic(g.panic)
		}
		return g.content, g.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
