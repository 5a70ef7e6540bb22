package tts

import (
	"context"
	"time"
)

// MockSynthesizer returns a tiny canned clip after a fixed delay. Useful for
// development and tests that do not care about audio contents.
type MockSynthesizer struct {
	// Delay simulates synthesis latency. Zero means resolve immediately.
	Delay time.Duration
}

// Synthesize implements Synthesizer.
func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) (Clip, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return Clip{}, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	return Clip{Audio: []byte(text), MediaType: "audio/mock"}, nil
}
