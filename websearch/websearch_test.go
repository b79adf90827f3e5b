package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ddgPage = `<html><body>
<div class="result results_links result--ad">
  <a class="result__a" href="https://ads.example.com">Sponsored</a>
</div>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&rut=abc">Go Documentation</a></h2>
  <a class="result__snippet">The Go programming language docs.</a>
</div>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="https://example.org/post">Example Post</a></h2>
  <div class="result__snippet">  Some   snippet  </div>
</div>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="/relative">Relative link</a></h2>
</div>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="https://third.example">Third</a></h2>
</div>
</body></html>`

func TestParseResults(t *testing.T) {
	results, err := parseResults(strings.NewReader(ddgPage))
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, Result{Title: "Go Documentation", URL: "https://go.dev/doc/", Snippet: "The Go programming language docs."}, results[0])
	assert.Equal(t, "https://example.org/post", results[1].URL)
	assert.Equal(t, "Some   snippet", results[1].Snippet)
	assert.Equal(t, "Third", results[2].Title)
}

func TestUnwrapURL(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa&rut=x", "https://example.com/a"},
		{"https://example.com", "https://example.com"},
		{"/relative", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unwrapURL(tt.href), tt.href)
	}
}

func TestSearch(t *testing.T) {
	var gotQuery, gotRegion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/html/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotQuery = r.PostForm.Get("q")
		gotRegion = r.PostForm.Get("kl")
		fmt.Fprint(w, ddgPage)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithMaxResults(2), WithRegion("us-en"), WithRateLimit(1000))
	results, err := c.Search(context.Background(), "  golang docs ")
	require.NoError(t, err)

	assert.Equal(t, "golang docs", gotQuery)
	assert.Equal(t, "us-en", gotRegion)
	assert.Len(t, results, 2)
}

func TestSearch_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	c := New(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithRateLimit(1000))

	_, err := c.Search(context.Background(), "")
	require.Error(t, err)

	_, err = c.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestSearch_RateLimitHonoursContext(t *testing.T) {
	c := New(WithBaseURL("http://127.0.0.1:0"), WithRateLimit(0.001))
	// Drain the single burst token.
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Search(ctx, "slow")
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "No results.", Format(nil))
	out := Format([]Result{{Title: "A", URL: "https://a", Snippet: "s"}, {Title: "B", URL: "https://b"}})
	assert.Equal(t, "[1] A\nURL: https://a\nSnippet: s\n[2] B\nURL: https://b", out)
}
