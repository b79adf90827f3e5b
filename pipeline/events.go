package pipeline

import "video_social_generator/generator"

// Event names on the progress stream.
const (
	EventStatus     = "status"
	EventTranscript = "transcript"
	EventPost       = "post"
	EventError      = "error"
	EventDone       = "done"
)

// Stages carried by status events.
const (
	StageStarting        = "starting"
	StageTranscriptReady = "transcript_ready"
	StageGenerating      = "generating"
	StageDone            = "done"
)

// Event is one progress notification. Data marshals to the JSON payload.
type Event struct {
	Name string
	Data any
}

type StatusData struct {
	Stage string `json:"stage"`
}

type GeneratingData struct {
	Stage    string `json:"stage"`
	Platform string `json:"platform"`
	Index    int    `json:"index"`
}

type TranscriptData struct {
	Preview string `json:"preview"`
	Length  int    `json:"length"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type DoneData struct{}

func statusEvent(stage string) Event {
	return Event{Name: EventStatus, Data: StatusData{Stage: stage}}
}

func generatingEvent(platform string, index int) Event {
	return Event{Name: EventStatus, Data: GeneratingData{Stage: StageGenerating, Platform: platform, Index: index}}
}

func transcriptEvent(text string) Event {
	return Event{Name: EventTranscript, Data: TranscriptData{Preview: Preview(text), Length: Length(text)}}
}

func postEvent(platform, content string) Event {
	return Event{Name: EventPost, Data: generator.Post{Platform: platform, Content: content}}
}

func errorEvent(msg string) Event {
	return Event{Name: EventError, Data: ErrorData{Message: msg}}
}

func doneEvent() Event {
	return Event{Name: EventDone, Data: DoneData{}}
}
