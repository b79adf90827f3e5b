package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"video_social_generator/metrics"
	"video_social_generator/websearch"
)

// DefaultMaxSteps bounds the number of model turns in one batch.
const DefaultMaxSteps = 12

// Post is a generated post for one platform.
type Post struct {
	Platform string `json:"platform"`
	Content  string `json:"content"`
}

// BatchError is the single failure of a buffered batch. No partial results
// accompany it.
type BatchError struct {
	Message string
	Err     error
}

func (e *BatchError) Error() string { return e.Message }

func (e *BatchError) Unwrap() error { return e.Err }

// Agent 负责一次性为所有平台生成文案。
// The model drives a tool loop; platforms it never writes are filled by
// direct writer calls so the batch always has one post per requested platform.
type Agent struct {
	llm      ToolLLM
	writer   *Writer
	search   Searcher
	maxSteps int
	logger   *slog.Logger
}

type AgentOption func(*Agent)

// WithSearch enables the web_search tool.
func WithSearch(s Searcher) AgentOption {
	return func(a *Agent) { a.search = s }
}

func WithMaxSteps(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

func WithLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAgent(llm ToolLLM, writer *Writer, opts ...AgentOption) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("tool llm is required")
	}
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	a := &Agent{llm: llm, writer: writer, maxSteps: DefaultMaxSteps, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Agent) tools() []ToolSpec {
	tools := []ToolSpec{generateContentTool()}
	if a.search != nil {
		tools = append(tools, webSearchTool())
	}
	return tools
}

// Run generates one post per platform, in the order given.
func (a *Agent) Run(ctx context.Context, transcript string, platforms []string, language string) ([]Post, error) {
	if len(platforms) == 0 {
		return nil, &BatchError{Message: "no platforms requested"}
	}
	requested := make(map[string]string, len(platforms))
	for _, p := range platforms {
		requested[platformKey(p)] = p
	}
	written := make(map[string]string, len(platforms))

	session := a.llm.StartSession(BuildBatchPrompt(transcript, platforms, language), a.tools())
	for step := 0; ; step++ {
		if step >= a.maxSteps {
			return nil, &BatchError{Message: fmt.Sprintf("agent did not finish within %d steps", a.maxSteps)}
		}
		metrics.LLMCalls.Add(1)
		reply, err := session.Step(ctx)
		if err != nil {
			metrics.LLMErrors.Add(1)
			return nil, &BatchError{Message: err.Error(), Err: err}
		}
		if len(reply.ToolCalls) == 0 {
			break
		}
		for _, call := range reply.ToolCalls {
			out, err := a.runTool(ctx, call, transcript, language, requested, written)
			if err != nil {
				return nil, err
			}
			session.AddToolResult(call.ID, out)
		}
	}

	posts := make([]Post, 0, len(platforms))
	for _, p := range platforms {
		content, ok := written[platformKey(p)]
		if !ok {
			a.logger.Debug("agent skipped platform, writing directly", slog.String("platform", p))
			var err error
			content, err = a.writer.Generate(ctx, transcript, p, language)
			if err != nil {
				return nil, &BatchError{Message: err.Error(), Err: err}
			}
			written[platformKey(p)] = content
		}
		posts = append(posts, Post{Platform: p, Content: content})
	}
	return posts, nil
}

// runTool executes one tool call. Argument and search problems are reported
// back to the model; a failed post is fatal for the batch.
func (a *Agent) runTool(ctx context.Context, call ToolCall, transcript, language string, requested, written map[string]string) (string, error) {
	switch call.Name {
	case toolGenerateContent:
		var args generateContentArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return err.Error(), nil
		}
		platform, ok := requested[platformKey(args.Platform)]
		if !ok {
			return fmt.Sprintf("platform %q was not requested; write only for: %s", args.Platform, strings.Join(sortedValues(requested), ", ")), nil
		}
		content, err := a.writer.Generate(ctx, withContext(transcript, args.Context), platform, language)
		if err != nil {
			return "", &BatchError{Message: err.Error(), Err: err}
		}
		written[platformKey(platform)] = content
		return content, nil

	case toolWebSearch:
		if a.search == nil {
			return "web search is not available", nil
		}
		var args webSearchArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return err.Error(), nil
		}
		metrics.WebSearches.Add(1)
		results, err := a.search.Search(ctx, args.Query)
		if err != nil {
			metrics.WebSearchErrors.Add(1)
			a.logger.Warn("web search failed", slog.String("query", args.Query), slog.Any("error", err))
			return "web search failed: " + err.Error(), nil
		}
		return websearch.Format(results), nil

	default:
		return fmt.Sprintf("unknown tool %q", call.Name), nil
	}
}

func platformKey(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
