package player

import (
	"context"
	"sync"
	"time"

	"github.com/voxwire-ai/voxwire/pkg/voice/tts"
)

// NullPlayer discards audio, sleeping a fixed duration per clip so playback
// pacing still behaves realistically. Useful on machines without audio
// output and as a default in tests.
type NullPlayer struct {
	// ClipDuration is the simulated playback time per clip. Zero means return
	// immediately.
	ClipDuration time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Play implements Player.
func (p *NullPlayer) Play(ctx context.Context, _ tts.Clip) error {
	if p.ClipDuration <= 0 {
		return nil
	}

	playCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer func() {
		cancel()
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
	}()

	select {
	case <-time.After(p.ClipDuration):
	case <-playCtx.Done():
	}
	return nil
}

// Stop implements Player.
func (p *NullPlayer) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
