package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultYouTubeBaseURL = "https://www.youtube.com"
	playerResponseMarker  = "ytInitialPlayerResponse = "
	userAgentChrome       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	maxWatchPageBytes     = 6 << 20
	maxTimedTextBytes     = 2 << 20
)

// YouTube fetches transcripts by scraping the watch page for caption tracks
// and downloading the chosen track as timedtext XML.
type YouTube struct {
	client      *http.Client
	baseURL     string
	maxTries    uint
	initialWait time.Duration
	logger      *slog.Logger
}

// YouTubeOption customizes the YouTube provider.
type YouTubeOption func(*YouTube)

func WithHTTPClient(client *http.Client) YouTubeOption {
	return func(y *YouTube) {
		if client != nil {
			y.client = client
		}
	}
}

// WithBaseURL points the provider at another host (used by tests).
func WithBaseURL(baseURL string) YouTubeOption {
	return func(y *YouTube) {
		if baseURL != "" {
			y.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithRetry sets the number of attempts for retryable responses and the first backoff wait.
func WithRetry(maxTries uint, initialWait time.Duration) YouTubeOption {
	return func(y *YouTube) {
		if maxTries > 0 {
			y.maxTries = maxTries
		}
		if initialWait > 0 {
			y.initialWait = initialWait
		}
	}
}

func WithLogger(logger *slog.Logger) YouTubeOption {
	return func(y *YouTube) {
		if logger != nil {
			y.logger = logger
		}
	}
}

func NewYouTube(opts ...YouTubeOption) *YouTube {
	y := &YouTube{
		client:      &http.Client{Timeout: 20 * time.Second},
		baseURL:     defaultYouTubeBaseURL,
		maxTries:    3,
		initialWait: 500 * time.Millisecond,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

type playerResponse struct {
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// Fetch implements Provider.
func (y *YouTube) Fetch(ctx context.Context, videoID, language string) ([]Segment, error) {
	watchURL := y.baseURL + "/watch?v=" + url.QueryEscape(videoID)
	page, err := y.get(ctx, videoID, watchURL)
	if err != nil {
		return nil, err
	}

	player, err := parsePlayerResponse(page)
	if err != nil {
		return nil, newError(Unknown, videoID, err,
			"Unexpected error while fetching transcript for video '%s': %v", videoID, err)
	}
	if err := checkPlayability(videoID, player); err != nil {
		return nil, err
	}

	if player.Captions == nil || len(player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks) == 0 {
		return nil, newError(NotFound, videoID, nil, "Transcripts are disabled for video '%s'.", videoID)
	}
	tracks := player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	track, ok := pickTrack(tracks, language)
	if !ok {
		return nil, newError(NotFound, videoID, nil,
			"No transcript in language '%s' for video '%s' (available: %s).",
			language, videoID, strings.Join(trackLanguages(tracks), ", "))
	}
	if needsPoToken(track.BaseURL) {
		return nil, newError(Forbidden, videoID, nil,
			"Access denied for video '%s'. The caption track requires browser verification.", videoID)
	}

	y.logger.Debug("youtube: caption track selected",
		slog.String("video_id", videoID),
		slog.String("language", track.LanguageCode),
		slog.String("kind", track.Kind))

	xmlBody, err := y.get(ctx, videoID, timedTextURL(track.BaseURL))
	if err != nil {
		return nil, err
	}
	return parseTimedText(xmlBody)
}

// statusError marks a response status worth retrying.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("youtube responded %d %s", e.code, http.StatusText(e.code))
}

func (y *YouTube) get(ctx context.Context, videoID, rawURL string) ([]byte, error) {
	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgentChrome)
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

		resp, err := y.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, &statusError{code: resp.StatusCode}
		case resp.StatusCode == http.StatusForbidden:
			return nil, backoff.Permanent(newError(Forbidden, videoID, nil,
				"Access denied for video '%s'. The video may be private, restricted, or require authentication.", videoID))
		case resp.StatusCode == http.StatusNotFound:
			return nil, backoff.Permanent(newError(NotFound, videoID, nil,
				"Video '%s' not found or is private/deleted.", videoID))
		case resp.StatusCode != http.StatusOK:
			return nil, backoff.Permanent(newError(Unknown, videoID, nil,
				"Unexpected error while fetching transcript for video '%s': status %d", videoID, resp.StatusCode))
		}
		limit := int64(maxWatchPageBytes)
		if strings.Contains(rawURL, "timedtext") {
			limit = maxTimedTextBytes
		}
		return io.ReadAll(io.LimitReader(resp.Body, limit))
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = y.initialWait
	bo.MaxInterval = 5 * time.Second

	body, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(y.maxTries))
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return nil, newError(Unavailable, videoID, err,
				"Network error while fetching transcript for video '%s': %v", videoID, se)
		}
		return nil, err
	}
	return body, nil
}

func parsePlayerResponse(page []byte) (*playerResponse, error) {
	idx := strings.Index(string(page), playerResponseMarker)
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	raw := extractJSON(page[idx+len(playerResponseMarker):])
	if raw == nil {
		return nil, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}
	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return &player, nil
}

func checkPlayability(videoID string, player *playerResponse) error {
	if player.PlayabilityStatus == nil {
		return nil
	}
	status := player.PlayabilityStatus.Status
	reason := player.PlayabilityStatus.Reason
	switch status {
	case "", "OK":
		return nil
	case "ERROR":
		return newError(NotFound, videoID, nil, "Video '%s' not found or is private/deleted. %s", videoID, reason)
	case "LOGIN_REQUIRED":
		if strings.Contains(strings.ToLower(reason), "private") {
			return newError(NotFound, videoID, nil, "Video '%s' not found or is private/deleted. %s", videoID, reason)
		}
		return newError(Forbidden, videoID, nil,
			"Access denied for video '%s'. The video may be private, restricted, or require authentication. %s", videoID, reason)
	case "UNPLAYABLE", "AGE_CHECK_REQUIRED", "CONTENT_CHECK_REQUIRED":
		return newError(Forbidden, videoID, nil,
			"Access denied for video '%s'. The video may be private, restricted, or require authentication. %s", videoID, reason)
	default:
		return newError(Unknown, videoID, nil,
			"Unexpected error while fetching transcript for video '%s': playability %s %s", videoID, status, reason)
	}
}

// pickTrack prefers a manual track over an auto-generated one, and an exact
// language match over a base-subtag match ("en" matching "en-US").
func pickTrack(tracks []captionTrack, language string) (captionTrack, bool) {
	language = strings.ToLower(language)
	base, _, _ := strings.Cut(language, "-")
	matchers := []func(captionTrack) bool{
		func(t captionTrack) bool { return strings.ToLower(t.LanguageCode) == language && t.Kind != "asr" },
		func(t captionTrack) bool { return strings.ToLower(t.LanguageCode) == language },
		func(t captionTrack) bool { return baseSubtag(t.LanguageCode) == base && t.Kind != "asr" },
		func(t captionTrack) bool { return baseSubtag(t.LanguageCode) == base },
	}
	for _, match := range matchers {
		for _, t := range tracks {
			if match(t) {
				return t, true
			}
		}
	}
	return captionTrack{}, false
}

func baseSubtag(code string) string {
	base, _, _ := strings.Cut(strings.ToLower(code), "-")
	return base
}

func trackLanguages(tracks []captionTrack) []string {
	seen := make(map[string]bool, len(tracks))
	var langs []string
	for _, t := range tracks {
		if !seen[t.LanguageCode] {
			seen[t.LanguageCode] = true
			langs = append(langs, t.LanguageCode)
		}
	}
	return langs
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// timedTextURL drops the fmt parameter so YouTube answers with the plain XML format.
func timedTextURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL
	}
	q := u.Query()
	q.Del("fmt")
	u.RawQuery = q.Encode()
	return u.String()
}

// extractJSON returns the JSON object starting at b[0] by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
