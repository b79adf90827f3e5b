package generator

import (
	"fmt"
	"strings"
)

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	System  string
	User    string
	History []Message
}

// Message 用于少量历史（可选）。
type Message struct {
	Role    string
	Content string
}

const (
	transcriptMarker = "Transcript:\n"

	copywriterRole = "You are a social media copywriter."

	agentInstructions = "You are a talented content writer agent who writes engaging, humorous, " +
		"and informative highly readable content for social media platforms. " +
		"You are given a video transcript and social media platforms. " +
		"You need to generate social media content from the transcript " +
		"using the generate_content tool for each of the given platforms. " +
		"You can use the web_search tool to find relevant information " +
		"on the topic and fill in some useful details if needed."
)

// languageClause pins the output language. Without one the model must keep
// the transcript's own language.
func languageClause(language string) string {
	if strings.TrimSpace(language) == "" {
		return "Detect the transcript language and write strictly in that language. Do not translate or switch languages. "
	}
	return fmt.Sprintf("Write strictly in %s. Do not switch languages or translate. ", language)
}

// BuildPostPrompt asks for a single post for one platform.
func BuildPostPrompt(transcript, platform, language string) Prompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a concise %s post based ONLY on the transcript below. ", platform)
	sb.WriteString(languageClause(language))
	sb.WriteString("Prefer short sentences. Avoid fluff. Keep it skimmable. ")
	sb.WriteString("Add at most 1-2 relevant hashtags when they clearly add value.\n\n")
	sb.WriteString(transcriptMarker)
	sb.WriteString(transcript)

	return Prompt{System: copywriterRole, User: sb.String()}
}

// BuildBatchPrompt is the single instruction given to the agent for a whole batch.
func BuildBatchPrompt(transcript string, platforms []string, language string) Prompt {
	user := fmt.Sprintf(
		"Generate content for %s based on this video transcript. %sTranscript: %s",
		platformList(platforms), languageClause(language), transcript,
	)
	return Prompt{System: agentInstructions, User: user}
}

// platformList renders ["LinkedIn", "Instagram"] as "a LinkedIn post and a Instagram post".
func platformList(platforms []string) string {
	parts := make([]string, 0, len(platforms))
	for _, p := range platforms {
		parts = append(parts, "a "+p+" post")
	}
	return strings.Join(parts, " and ")
}

// promptPlatform recovers the platform from a BuildPostPrompt user message.
func promptPlatform(user string) (string, bool) {
	rest, ok := strings.CutPrefix(user, "Write a concise ")
	if !ok {
		return "", false
	}
	platform, _, ok := strings.Cut(rest, " post based ONLY")
	return platform, ok && platform != ""
}
