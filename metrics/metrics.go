// Package metrics holds process-wide counters exposed on /metrics.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

var (
	TranscriptRequests atomic.Int64
	TranscriptErrors   atomic.Int64
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	WebSearches        atomic.Int64
	WebSearchErrors    atomic.Int64
	BatchesBuffered    atomic.Int64
	BatchesStreamed    atomic.Int64
	PostsGenerated     atomic.Int64
	PostErrors         atomic.Int64
	StreamsCancelled   atomic.Int64
	Panics             atomic.Int64
)

// Snapshot returns current counter values merged with extra gauges.
func Snapshot(extra map[string]int64) map[string]int64 {
	m := map[string]int64{
		"transcript_requests_total": TranscriptRequests.Load(),
		"transcript_errors_total":   TranscriptErrors.Load(),
		"llm_calls_total":           LLMCalls.Load(),
		"llm_errors_total":          LLMErrors.Load(),
		"web_searches_total":        WebSearches.Load(),
		"web_search_errors_total":   WebSearchErrors.Load(),
		"batches_buffered_total":    BatchesBuffered.Load(),
		"batches_streamed_total":    BatchesStreamed.Load(),
		"posts_generated_total":     PostsGenerated.Load(),
		"post_errors_total":         PostErrors.Load(),
		"streams_cancelled_total":   StreamsCancelled.Load(),
		"panics_total":              Panics.Load(),
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

// Format renders a snapshot as "name value" lines sorted by name.
func Format(snapshot map[string]int64) string {
	names := make([]string, 0, len(snapshot))
	for k := range snapshot {
		names = append(names, k)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, k := range names {
		fmt.Fprintf(&sb, "%s %d\n", k, snapshot[k])
	}
	return sb.String()
}
