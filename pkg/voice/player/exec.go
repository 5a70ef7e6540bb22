package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/voxwire-ai/voxwire/pkg/voice/tts"
)

// ExecPlayer pipes clip bytes to an external playback command's stdin, e.g.
// "ffplay -autoexit -nodisp -loglevel quiet -" or "aplay -q". One clip plays
// at a time; Stop terminates the running process.
type ExecPlayer struct {
	cmd []string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewExecPlayer parses command into argv form.
func NewExecPlayer(command string) (*ExecPlayer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("player command empty")
	}
	return &ExecPlayer{cmd: args}, nil
}

// Play implements Player.
func (p *ExecPlayer) Play(ctx context.Context, clip tts.Clip) error {
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

	cmd := exec.CommandContext(playCtx, p.cmd[0], p.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(clip.Audio)

	err := cmd.Run()
	if err == nil {
		return nil
	}
	// a stopped playback is a normal outcome, not a failure
	if playCtx.Err() != nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("player %s exited: %w", p.cmd[0], err)
	}
	return fmt.Errorf("run player %s: %w", p.cmd[0], err)
}

// Stop implements Player. It terminates the currently playing process, if
// any, and returns immediately.
func (p *ExecPlayer) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
