package voice

import (
	"context"
	"log/slog"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"github.com/voxwire-ai/voxwire/pkg/voice/player"
	"github.com/voxwire-ai/voxwire/pkg/voice/tts"
)

// audioJob tracks one sentence from synthesis through playback. done is
// closed once clip/err are set; nothing reads them before that.
type audioJob struct {
	id   string
	text string
	done chan struct{}
	clip tts.Clip
	err  error
}

// SpeechQueue plays synthesized sentences strictly in enqueue order.
//
// Each Enqueue starts that sentence's synthesis immediately without blocking
// the producer; the drain loop awaits a result only when its job reaches the
// head of the queue. Because every queued job is already synthesizing, the
// next clip is typically ready the moment the current one finishes, hiding
// synthesis latency behind playback without ever reordering.
//
// A failed synthesis is skipped silently; the rest of the queue proceeds.
type SpeechQueue struct {
	synth  tts.Synthesizer
	player player.Player
	logger *slog.Logger

	mu          sync.Mutex
	jobs        []*audioJob
	draining    bool
	speaking    bool
	epoch       int
	epochCtx    context.Context
	epochCancel context.CancelFunc
	onSpeaking  func(bool)
}

// NewSpeechQueue creates a queue that synthesizes with synth and plays with p.
func NewSpeechQueue(synth tts.Synthesizer, p player.Player, logger *slog.Logger) *SpeechQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpeechQueue{
		synth:  synth,
		player: p,
		logger: logger.With(slog.String("component", "speech-queue")),
	}
}

// SetOnSpeakingChange registers a callback invoked when audible playback
// starts or stops. Set before the first Enqueue.
func (q *SpeechQueue) SetOnSpeakingChange(fn func(speaking bool)) {
	q.mu.Lock()
	q.onSpeaking = fn
	q.mu.Unlock()
}

// Speaking reports whether a clip is audibly playing right now. Queued or
// synthesizing jobs do not count.
func (q *SpeechQueue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// Len returns the number of jobs not yet fully played.
func (q *SpeechQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Epoch returns the queue's current admission epoch. Stop supersedes it;
// pair with EnqueueAt to reject sentences produced before a Stop.
func (q *SpeechQueue) Epoch() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.epoch
}

// Enqueue appends text to the queue and starts its synthesis. Text without a
// single letter or digit is dropped so whitespace and stray punctuation never
// reach the synthesizer.
func (q *SpeechQueue) Enqueue(text string) {
	q.mu.Lock()
	epoch := q.epoch
	q.mu.Unlock()
	q.EnqueueAt(epoch, text)
}

// EnqueueAt is Enqueue gated on an admission epoch: the append happens under
// the same lock Stop uses to bump the epoch, so a sentence captured before a
// Stop can never slip into the queue after it. It reports whether the
// sentence was admitted.
func (q *SpeechQueue) EnqueueAt(epoch int, text string) bool {
	if !speakable(text) {
		return false
	}

	job := &audioJob{
		id:   uuid.NewString(),
		text: text,
		done: make(chan struct{}),
	}

	q.mu.Lock()
	if q.epoch != epoch {
		q.mu.Unlock()
		return false
	}
	if q.epochCtx == nil {
		q.epochCtx, q.epochCancel = context.WithCancel(context.Background())
	}
	ctx := q.epochCtx
	q.jobs = append(q.jobs, job)
	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	go func() {
		job.clip, job.err = q.synth.Synthesize(ctx, job.text)
		close(job.done)
	}()

	if start {
		go q.drain(epoch, ctx)
	}
	return true
}

// Stop halts any current playback, discards all queued and in-flight jobs
// without awaiting their synthesis, and resets the queue so a future Enqueue
// starts a fresh drain loop. Safe to call at any point.
func (q *SpeechQueue) Stop() {
	q.mu.Lock()
	if q.epochCancel != nil {
		q.epochCancel()
	}
	q.epochCtx = nil
	q.epochCancel = nil
	q.jobs = nil
	q.epoch++
	q.draining = false
	wasSpeaking := q.speaking
	q.speaking = false
	fn := q.onSpeaking
	q.mu.Unlock()

	q.player.Stop()
	if wasSpeaking && fn != nil {
		fn(false)
	}
}

// drain plays jobs in order until the queue empties or its epoch is
// superseded by Stop. A superseded loop exits without touching queue state;
// the new epoch owns it.
func (q *SpeechQueue) drain(epoch int, ctx context.Context) {
	for {
		q.mu.Lock()
		if q.epoch != epoch {
			q.mu.Unlock()
			return
		}
		if len(q.jobs) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		head := q.jobs[0]
		q.mu.Unlock()

		select {
		case <-head.done:
		case <-ctx.Done():
			return
		}

		if head.err != nil {
			q.logger.Warn("synthesis failed, skipping sentence",
				slog.String("job_id", head.id),
				slog.String("error", head.err.Error()))
			q.pop(epoch, head)
			continue
		}

		q.setSpeaking(epoch, true)
		err := q.player.Play(ctx, head.clip)
		q.setSpeaking(epoch, false)
		if err != nil {
			q.logger.Warn("playback failed, skipping sentence",
				slog.String("job_id", head.id),
				slog.String("error", err.Error()))
		}
		q.pop(epoch, head)

		if ctx.Err() != nil {
			return
		}
	}
}

func (q *SpeechQueue) pop(epoch int, job *audioJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.epoch != epoch {
		return
	}
	if len(q.jobs) > 0 && q.jobs[0] == job {
		q.jobs = q.jobs[1:]
	}
}

func (q *SpeechQueue) setSpeaking(epoch int, speaking bool) {
	q.mu.Lock()
	if q.epoch != epoch || q.speaking == speaking {
		q.mu.Unlock()
		return
	}
	q.speaking = speaking
	fn := q.onSpeaking
	q.mu.Unlock()

	if fn != nil {
		fn(speaking)
	}
}

// speakable reports whether text contains at least one letter or digit.
func speakable(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
