package generator

import (
	"context"
	"strings"
)

// MockLLM 一个简单的占位实现，便于本地调试，不调用外部模型。
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	platform := "social media"
	if p, ok := promptPlatform(prompt.User); ok {
		platform = p
	}
	excerpt := prompt.User
	if i := strings.LastIndex(excerpt, transcriptMarker); i >= 0 {
		excerpt = excerpt[i+len(transcriptMarker):]
	}
	excerpt = strings.Join(strings.Fields(excerpt), " ")
	if r := []rune(excerpt); len(r) > 160 {
		excerpt = string(r[:160]) + "..."
	}

	var sb strings.Builder
	sb.WriteString("Offline draft for ")
	sb.WriteString(platform)
	sb.WriteString("\n\n")
	sb.WriteString(excerpt)
	sb.WriteString("\n\n#draft")
	return sb.String(), nil
}

// StartSession returns a session that finishes immediately without tool
// calls, so every platform is written through the direct writer path.
func (m MockLLM) StartSession(Prompt, []ToolSpec) ToolSession {
	return mockSession{}
}

type mockSession struct{}

func (mockSession) Step(context.Context) (Reply, error) {
	return Reply{Content: "done"}, nil
}

func (mockSession) AddToolResult(string, string) {}
