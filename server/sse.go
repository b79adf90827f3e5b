package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"video_social_generator/pipeline"
)

// sseWriter frames events for text/event-stream and flushes after each one.
type sseWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

func (s *sseWriter) raw(frame string) error {
	if _, err := io.WriteString(s.w, frame); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// retry tells the client how long to wait before reconnecting.
func (s *sseWriter) retry(d time.Duration) error {
	return s.raw(fmt.Sprintf("retry: %d\n\n", d.Milliseconds()))
}

func (s *sseWriter) event(ev pipeline.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return err
	}
	return s.raw(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Name, data))
}

func (s *sseWriter) ping() error {
	return s.raw(": ping\n\n")
}

// pump copies events to the client until the channel closes, ctx ends or a
// write fails. A ping goes out whenever heartbeat passes with no frame.
func (s *sseWriter) pump(ctx context.Context, events <-chan pipeline.Event, heartbeat time.Duration) error {
	timer := time.NewTimer(heartbeat)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.event(ev); err != nil {
				return err
			}
		case <-timer.C:
			if err := s.ping(); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
		timer.Reset(heartbeat)
	}
}
