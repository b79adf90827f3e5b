package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"video_social_generator/generator"
	"video_social_generator/pipeline"
)

// streamToWriter prints progress events as they arrive and collects the
// posts into a Result. Per-platform failures are printed and skipped; a
// batch that never gets past the transcript is an error.
func streamToWriter(ctx context.Context, orch *pipeline.Orchestrator, req pipeline.Request, w io.Writer) (*pipeline.Result, error) {
	res := &pipeline.Result{VideoID: req.VideoID}
	var fatal error
	var haveTranscript, done bool
	for ev := range orch.Stream(ctx, req) {
		switch d := ev.Data.(type) {
		case pipeline.GeneratingData:
			fmt.Fprintf(w, "[%d/%d] generating %s...\n", d.Index+1, len(req.Platforms), d.Platform)
		case pipeline.StatusData:
			fmt.Fprintf(w, "status: %s\n", d.Stage)
		case pipeline.TranscriptData:
			haveTranscript = true
			res.TranscriptPreview = d.Preview
			fmt.Fprintf(w, "transcript: %d characters\n", d.Length)
		case generator.Post:
			res.Posts = append(res.Posts, d)
			fmt.Fprintf(w, "== %s ==\n%s\n\n", d.Platform, d.Content)
		case pipeline.ErrorData:
			fmt.Fprintf(w, "error: %s\n", d.Message)
			if !haveTranscript {
				fatal = errors.New(d.Message)
			}
		case pipeline.DoneData:
			done = true
		}
	}
	if fatal != nil {
		return nil, fatal
	}
	if !done {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("stream ended before completion")
	}
	return res, nil
}
