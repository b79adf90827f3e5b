package generator

import "context"

// LLMClient 抽象大模型客户端，便于替换/Mock。
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// ToolLLM starts multi-step conversations in which the model may call tools.
type ToolLLM interface {
	StartSession(prompt Prompt, tools []ToolSpec) ToolSession
}

// ToolSession is one tool-calling conversation. Step sends the accumulated
// messages and records the model's reply; AddToolResult appends the output of
// a tool call so the next Step sees it.
type ToolSession interface {
	Step(ctx context.Context) (Reply, error)
	AddToolResult(callID, content string)
}

// ToolSpec describes a function tool. Parameters is a JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Reply is one assistant turn. No tool calls means the model is finished.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	MaxOutputTokens int
}
