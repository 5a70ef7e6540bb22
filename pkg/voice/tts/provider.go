// Package tts converts sentence text into playable audio clips.
package tts

import "context"

// Clip is an opaque playable audio resource returned by a synthesizer.
type Clip struct {
	// Audio is the encoded audio payload.
	Audio []byte
	// MediaType is the payload encoding, e.g. "audio/wav" or "audio/mpeg".
	MediaType string
}

// Synthesizer converts one sentence of text into an audio clip. A non-nil
// error marks that sentence as failed; callers skip it and continue.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Clip, error)
}
