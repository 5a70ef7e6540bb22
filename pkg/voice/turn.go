package voice

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Turn is one user utterance plus the assistant's response-in-progress. It is
// mutated by the stream consumer while live and becomes immutable once the
// stream reaches a terminal event or the turn is superseded.
type Turn struct {
	ID        string
	Utterance string

	mu              sync.Mutex
	text            strings.Builder
	followup        string
	recommendations []Recommendation
	done            bool
	cancelled       bool
	errText         string
}

// Text returns the response text accumulated so far.
func (t *Turn) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text.String()
}

// Followup returns the follow-up prompt, if one arrived.
func (t *Turn) Followup() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.followup
}

// Recommendations returns the structured side-data stored on the turn.
func (t *Turn) Recommendations() []Recommendation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Recommendation, len(t.recommendations))
	copy(out, t.recommendations)
	return out
}

// Done reports whether the turn reached a terminal state: natural completion,
// error, or cancellation.
func (t *Turn) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Cancelled reports whether the turn was superseded or explicitly cancelled.
func (t *Turn) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Err returns the terminal failure text, empty when the turn succeeded.
func (t *Turn) Err() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errText
}

func (t *Turn) appendText(delta string) {
	t.mu.Lock()
	if !t.done {
		t.text.WriteString(delta)
	}
	t.mu.Unlock()
}

func (t *Turn) setFollowup(text string) {
	t.mu.Lock()
	if !t.done {
		t.followup = text
	}
	t.mu.Unlock()
}

func (t *Turn) setRecommendations(recs []Recommendation) {
	t.mu.Lock()
	if !t.done {
		t.recommendations = recs
	}
	t.mu.Unlock()
}

func (t *Turn) finish() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

func (t *Turn) fail(msg string) {
	t.mu.Lock()
	if !t.done {
		t.done = true
		t.errText = msg
	}
	t.mu.Unlock()
}

func (t *Turn) markCancelled() {
	t.mu.Lock()
	if !t.done {
		t.done = true
		t.cancelled = true
	}
	t.mu.Unlock()
}

// Identity carries the opaque session parameters an external session manager
// supplies; the pipeline only forwards them on the answer request.
type Identity struct {
	SessionID string
	UserID    string
	UserType  string
	Source    string
}

// Callbacks lets a UI mirror turn progress. All callbacks fire on the stream
// consumer goroutine and only for the currently authorized turn.
type Callbacks struct {
	OnText            func(delta string)
	OnFollowup        func(text string)
	OnRecommendations func(recs []Recommendation)
	OnTurnDone        func(turn *Turn)
}

// transportErrorText is spoken for no one: a network-level failure is stored
// on the turn but, unlike a server-reported error event, never synthesized.
const transportErrorText = "The answer stream was interrupted. Please try again."

// Conversation drives one voice session: it owns turn lifecycles, the single
// live cancellation token, and the speech queue. Starting a new turn or
// cancelling the current one atomically aborts the in-flight stream, flushes
// the queue, and stops any sounding audio; callbacks from a superseded turn
// verify their generation before touching shared state.
type Conversation struct {
	client    *AnswerClient
	queue     *SpeechQueue
	logger    *slog.Logger
	identity  Identity
	callbacks Callbacks

	// fallbackLen tunes the segmenter's comma fallback; zero means default.
	fallbackLen int

	mu      sync.Mutex
	gen     int
	cancel  context.CancelFunc
	current *Turn
	history []Message
}

// NewConversation creates a conversation bound to the answer client and
// speech queue.
func NewConversation(client *AnswerClient, queue *SpeechQueue, identity Identity, logger *slog.Logger) *Conversation {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversation{
		client:   client,
		queue:    queue,
		identity: identity,
		logger:   logger.With(slog.String("component", "conversation")),
	}
}

// SetCallbacks registers UI callbacks. Set before the first BeginTurn.
func (c *Conversation) SetCallbacks(cb Callbacks) {
	c.mu.Lock()
	c.callbacks = cb
	c.mu.Unlock()
}

// SetCommaFallback tunes the segmenter's comma fallback length for turns
// started afterwards. Zero or negative restores the default.
func (c *Conversation) SetCommaFallback(n int) {
	c.mu.Lock()
	c.fallbackLen = n
	c.mu.Unlock()
}

// History returns a copy of the exchanged messages so far.
func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// CurrentTurn returns the most recently started turn, or nil.
func (c *Conversation) CurrentTurn() *Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// BeginTurn supersedes any in-flight turn and starts streaming the answer for
// utterance. The prior turn's stream is aborted and its queued audio
// discarded before the new turn begins.
func (c *Conversation) BeginTurn(utterance string) *Turn {
	utterance = strings.TrimSpace(utterance)

	c.invalidate()
	qe := c.queue.Epoch()

	turn := &Turn{ID: uuid.NewString(), Utterance: utterance}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.current = turn
	history := make([]Message, len(c.history))
	copy(history, c.history)
	c.mu.Unlock()

	go c.runTurn(ctx, gen, qe, turn, history)
	return turn
}

// CancelCurrent invalidates the current turn without starting a new one:
// the stream is aborted, the queue emptied, and any sounding audio stopped.
func (c *Conversation) CancelCurrent() {
	c.mu.Lock()
	turn := c.current
	c.mu.Unlock()

	c.invalidate()

	if turn != nil {
		turn.markCancelled()
	}
}

// invalidate revokes the live token: it bumps the generation so stale
// callbacks become no-ops, cancels the stream context, and stops the queue.
func (c *Conversation) invalidate() {
	c.mu.Lock()
	c.gen++
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.queue.Stop()
}

// isCurrent reports whether gen is still the authorized generation.
func (c *Conversation) isCurrent(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Conversation) runTurn(ctx context.Context, gen, qe int, turn *Turn, history []Message) {
	req := AnswerRequest{
		History:   history,
		Utterance: turn.Utterance,
		SessionID: c.identity.SessionID,
		UserID:    c.identity.UserID,
		UserType:  c.identity.UserType,
		Source:    c.identity.Source,
	}

	stream, err := c.client.Open(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			turn.markCancelled()
			return
		}
		c.logger.Warn("failed to open answer stream", slog.String("error", err.Error()))
		turn.fail(transportErrorText)
		c.notifyDone(gen, turn)
		return
	}
	defer stream.Close()

	buf := NewSentenceBufferWithFallback(c.fallbackLen)

	for {
		ev, err := stream.Next()
		if err == io.EOF {
			c.finishTurn(gen, qe, turn, buf)
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				turn.markCancelled()
				return
			}
			c.logger.Warn("answer stream failed", slog.String("error", err.Error()))
			turn.fail(transportErrorText)
			c.notifyDone(gen, turn)
			return
		}
		if !c.isCurrent(gen) {
			turn.markCancelled()
			return
		}

		switch ev.Type {
		case EventTextChunk:
			turn.appendText(ev.Text)
			if c.callbacks.OnText != nil {
				c.callbacks.OnText(ev.Text)
			}
			for _, sentence := range buf.Add(ev.Text) {
				c.speak(gen, qe, sentence)
			}

		case EventFollowup:
			turn.setFollowup(ev.Text)
			if c.callbacks.OnFollowup != nil {
				c.callbacks.OnFollowup(ev.Text)
			}
			c.speak(gen, qe, ev.Text)

		case EventRecommendations:
			turn.setRecommendations(ev.Recommendations)
			if c.callbacks.OnRecommendations != nil {
				c.callbacks.OnRecommendations(ev.Recommendations)
			}

		case EventError:
			// authoritative content: displayed and spoken like a response
			turn.appendText(ev.Text)
			turn.fail(ev.Text)
			c.speak(gen, qe, ev.Text)
			c.commitHistory(gen, turn)
			c.notifyDone(gen, turn)
			return
		}
	}
}

// finishTurn flushes the segmenter remainder and seals the turn.
func (c *Conversation) finishTurn(gen, qe int, turn *Turn, buf *SentenceBuffer) {
	if remainder := buf.Flush(); remainder != "" {
		c.speak(gen, qe, remainder)
	}
	turn.finish()
	c.commitHistory(gen, turn)
	c.notifyDone(gen, turn)
}

// speak forwards a sentence to the queue only while gen is still authorized.
// The generation check is a fast path; the real guard is the queue epoch,
// checked under the queue lock so a cancellation between the generation check
// and the append still rejects the sentence.
func (c *Conversation) speak(gen, qe int, text string) {
	if !c.isCurrent(gen) {
		return
	}
	c.queue.EnqueueAt(qe, text)
}

func (c *Conversation) commitHistory(gen int, turn *Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.history = append(c.history,
		Message{Role: RoleUser, Text: turn.Utterance},
		Message{Role: RoleAssistant, Text: turn.Text(), Followup: turn.Followup()},
	)
}

func (c *Conversation) notifyDone(gen int, turn *Turn) {
	if !c.isCurrent(gen) {
		return
	}
	if c.callbacks.OnTurnDone != nil {
		c.callbacks.OnTurnDone(turn)
	}
}
