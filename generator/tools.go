package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"video_social_generator/websearch"
)

const (
	toolGenerateContent = "generate_content"
	toolWebSearch       = "web_search"
)

// Searcher is the web search backend exposed to the agent as a tool.
type Searcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

func generateContentTool() ToolSpec {
	return ToolSpec{
		Name:        toolGenerateContent,
		Description: "Generate a social media post for one platform from the video transcript.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"social_media_platform": map[string]any{
					"type":        "string",
					"description": "Target platform, exactly as given in the request.",
				},
				"additional_context": map[string]any{
					"type":        "string",
					"description": "Optional background facts, e.g. from web search, to use alongside the transcript.",
				},
			},
			"required": []string{"social_media_platform"},
		},
	}
}

func webSearchTool() ToolSpec {
	return ToolSpec{
		Name:        toolWebSearch,
		Description: "Search the web for background information on the video's topic.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
			"required": []string{"query"},
		},
	}
}

type generateContentArgs struct {
	Platform string `json:"social_media_platform"`
	Context  string `json:"additional_context"`
}

type webSearchArgs struct {
	Query string `json:"query"`
}

// withContext appends search notes to the transcript the writer sees.
func withContext(transcript, notes string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return transcript
	}
	return transcript + "\n\nBackground notes:\n" + notes
}

func decodeArgs(raw string, v any) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}
