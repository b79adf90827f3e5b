package transcript

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
)

// Segment is one caption line returned by a provider.
type Segment struct {
	Text     string
	Start    float64
	Duration float64
}

// Provider fetches the caption segments of a canonical video id.
type Provider interface {
	Fetch(ctx context.Context, videoID, language string) ([]Segment, error)
}

// Resolver validates a raw video reference, fetches its transcript and maps
// every failure onto a Kind.
type Resolver struct {
	provider Provider
	logger   *slog.Logger
}

func NewResolver(provider Provider, logger *slog.Logger) (*Resolver, error) {
	if provider == nil {
		return nil, errors.New("transcript provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{provider: provider, logger: logger}, nil
}

// Resolve returns the transcript text for raw in the given language.
func (r *Resolver) Resolve(ctx context.Context, raw, language string) (string, error) {
	id, err := Canonicalize(raw)
	if err != nil {
		return "", err
	}
	language = normalizeLanguage(language)
	return r.fetch(ctx, id, language)
}

// fetch expects an already canonical id.
func (r *Resolver) fetch(ctx context.Context, id, language string) (string, error) {
	if !validID(id) {
		return "", newError(InvalidInput, id, nil,
			"Invalid video ID format: '%s'. Please provide a valid YouTube video ID.", id)
	}

	r.logger.Info("fetching transcript", slog.String("video_id", id), slog.String("language", language))
	segments, err := r.provider.Fetch(ctx, id, language)
	if err != nil {
		mapped := classify(id, err)
		r.logger.Warn("transcript fetch failed",
			slog.String("video_id", id),
			slog.String("kind", mapped.Kind.String()),
			slog.Any("error", err))
		return "", mapped
	}

	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		parts = append(parts, s.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

// classify keeps a kind the provider already assigned and otherwise derives
// one from well-known error shapes.
func classify(id string, err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		if te.VideoID == "" {
			te.VideoID = id
		}
		return te
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return newError(Unavailable, id, err,
			"Request timeout while fetching transcript for video '%s'. The request took too long to complete.", id)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return newError(Unavailable, id, err,
			"Network connection error while fetching transcript for video '%s'. Please check your internet connection.", id)
	}
	return newError(Unknown, id, err,
		"Unexpected error while fetching transcript for video '%s': %v", id, err)
}
