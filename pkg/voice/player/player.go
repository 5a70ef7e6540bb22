// Package player plays opaque audio clips to completion or stop.
package player

import (
	"context"

	"github.com/voxwire-ai/voxwire/pkg/voice/tts"
)

// Player renders one clip at a time. Play blocks until the clip ends
// naturally, fails, or is cut short by Stop or context cancellation; a
// stopped playback returns nil so callers treat it as completed.
type Player interface {
	Play(ctx context.Context, clip tts.Clip) error
	Stop()
}
