package generator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"video_social_generator/metrics"
)

// GenerationError reports a failed post for one platform. It never carries
// transcript failures.
type GenerationError struct {
	Platform string
	Message  string
	Err      error
}

func (e *GenerationError) Error() string { return e.Message }

func (e *GenerationError) Unwrap() error { return e.Err }

// Writer produces one post per call with a single LLM request and no retry.
type Writer struct {
	llm    LLMClient
	logger *slog.Logger
}

func NewWriter(llm LLMClient, logger *slog.Logger) (*Writer, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{llm: llm, logger: logger}, nil
}

// Generate returns the model output verbatim.
func (w *Writer) Generate(ctx context.Context, transcript, platform, language string) (string, error) {
	start := time.Now()
	metrics.LLMCalls.Add(1)

	out, err := w.llm.Complete(ctx, BuildPostPrompt(transcript, platform, language))
	if err != nil {
		metrics.LLMErrors.Add(1)
		w.logger.Warn("post generation failed",
			slog.String("platform", platform),
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err))
		return "", &GenerationError{Platform: platform, Message: err.Error(), Err: err}
	}
	w.logger.Debug("post generated",
		slog.String("platform", platform),
		slog.Int("chars", len([]rune(out))),
		slog.Duration("elapsed", time.Since(start)))
	return out, nil
}
