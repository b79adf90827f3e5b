package transcript

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider counts calls and returns canned segments or an error.
type fakeProvider struct {
	calls    atomic.Int64
	segments []Segment
	err      error

	mu        sync.Mutex
	languages []string
}

func (f *fakeProvider) Fetch(_ context.Context, videoID, language string) ([]Segment, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.languages = append(f.languages, language)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

func newTestResolver(t *testing.T, p Provider) *Resolver {
	t.Helper()
	r, err := NewResolver(p, nil)
	require.NoError(t, err)
	return r
}

func TestNewResolver_RequiresProvider(t *testing.T) {
	_, err := NewResolver(nil, nil)
	require.Error(t, err)
}

func TestResolve_JoinsSegments(t *testing.T) {
	p := &fakeProvider{segments: []Segment{{Text: " Hello"}, {Text: "world."}, {Text: "Bye "}}}
	r := newTestResolver(t, p)

	got, err := r.Resolve(context.Background(), "https://youtu.be/abc123XYZ_", "")
	require.NoError(t, err)
	assert.Equal(t, "Hello world. Bye", got)
	assert.Equal(t, []string{"en"}, p.languages)
}

func TestResolve_EmptyInputNeverCallsProvider(t *testing.T) {
	p := &fakeProvider{segments: []Segment{{Text: "x"}}}
	r := newTestResolver(t, p)

	for _, raw := range []string{"", "   "} {
		_, err := r.Resolve(context.Background(), raw, "en")
		require.Error(t, err)
		assert.Equal(t, InvalidInput, KindOf(err))
	}
	assert.Zero(t, p.calls.Load())
}

func TestResolve_MalformedIDNeverCallsProvider(t *testing.T) {
	p := &fakeProvider{}
	r := newTestResolver(t, p)

	_, err := r.Resolve(context.Background(), "not a video id", "en")
	require.Error(t, err)
	assert.Equal(t, InvalidInput, KindOf(err))
	assert.Contains(t, err.Error(), "Invalid video ID format")
	assert.Zero(t, p.calls.Load())
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestResolve_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"kinded not found", newError(NotFound, "", nil, "gone"), NotFound},
		{"kinded forbidden wrapped", fmt.Errorf("scrape: %w", newError(Forbidden, "", nil, "nope")), Forbidden},
		{"deadline", context.DeadlineExceeded, Unavailable},
		{"net timeout", timeoutErr{}, Unavailable},
		{"dial error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, Unavailable},
		{"anything else", errors.New("boom"), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(t, &fakeProvider{err: tt.err})
			_, err := r.Resolve(context.Background(), "abc123XYZ_", "en")
			require.Error(t, err)
			assert.Equal(t, tt.want, KindOf(err))

			var te *Error
			require.ErrorAs(t, err, &te)
			assert.Equal(t, "abc123XYZ_", te.VideoID)
		})
	}
}

func TestResolve_UnknownWrapsMessage(t *testing.T) {
	r := newTestResolver(t, &fakeProvider{err: errors.New("captions exploded")})
	_, err := r.Resolve(context.Background(), "abc123XYZ_", "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "captions exploded")
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Unknown, KindOf(errors.New("x")))
	assert.Equal(t, Unknown, KindOf(nil))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{newError(InvalidInput, "", nil, "Video ID cannot be empty"), "Invalid video ID: Video ID cannot be empty"},
		{newError(NotFound, "", nil, "gone"), "Video not found: gone"},
		{newError(Unavailable, "", nil, "timeout"), "Network error: timeout"},
		{newError(Forbidden, "", nil, "blocked"), "Access denied: blocked"},
		{errors.New("odd"), "Error fetching transcript: odd"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Describe(tt.err))
	}
}
