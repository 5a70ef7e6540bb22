package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// sseWriter streams JSON frames to one client as server-sent events.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &sseWriter{w: w, flusher: f}, nil
}

// Send marshals data and writes it as one event.
func (sw *sseWriter) Send(data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", string(b)); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// Done writes the end-of-stream sentinel.
func (sw *sseWriter) Done() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := fmt.Fprint(sw.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}
