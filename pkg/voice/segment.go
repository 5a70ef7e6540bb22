package voice

import (
	"strings"
)

// DefaultCommaFallbackLen is the buffer length after which an unpunctuated
// run is split at the first comma instead of waiting for terminal
// punctuation. Long comma-delimited spans (lists, enumerations) would
// otherwise hold back synthesis indefinitely.
const DefaultCommaFallbackLen = 60

// Extract cuts the first complete sentence off the front of buffer.
//
// A sentence ends at one or more of `.`, `?`, `!`, optionally followed by
// closing quotes or brackets, when the next character is whitespace or the
// buffer ends there. If no terminal punctuation exists and the buffer is
// longer than fallbackLen, the cut happens after the first comma instead.
//
// The returned unit and remainder concatenate back to buffer exactly; the
// caller trims before use. ok is false when no cut rule applies and the
// caller should keep accumulating.
func Extract(buffer string, fallbackLen int) (unit, remainder string, ok bool) {
	if fallbackLen <= 0 {
		fallbackLen = DefaultCommaFallbackLen
	}

	for i := 0; i < len(buffer); i++ {
		if !isTerminal(buffer[i]) {
			continue
		}
		end := i
		for end+1 < len(buffer) && isTerminal(buffer[end+1]) {
			end++
		}
		for end+1 < len(buffer) && isCloser(buffer[end+1]) {
			end++
		}
		if end+1 == len(buffer) || isSpace(buffer[end+1]) {
			return buffer[:end+1], buffer[end+1:], true
		}
		i = end
	}

	if len(buffer) > fallbackLen {
		if idx := strings.IndexByte(buffer, ','); idx >= 0 {
			return buffer[:idx+1], buffer[idx+1:], true
		}
	}

	return "", buffer, false
}

func isTerminal(c byte) bool {
	return c == '.' || c == '?' || c == '!'
}

func isCloser(c byte) bool {
	switch c {
	case '"', '\'', ')', ']', '}':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}

// SentenceBuffer accumulates streamed text deltas and yields complete
// sentences as they become available. This enables low-latency speech
// synthesis: each sentence is handed off the moment its boundary arrives
// instead of waiting for the full response.
type SentenceBuffer struct {
	buffer      strings.Builder
	fallbackLen int
}

// NewSentenceBuffer creates a sentence buffer with the default comma
// fallback threshold.
func NewSentenceBuffer() *SentenceBuffer {
	return &SentenceBuffer{fallbackLen: DefaultCommaFallbackLen}
}

// NewSentenceBufferWithFallback creates a sentence buffer that falls back to
// comma splitting once the pending text exceeds fallbackLen bytes.
func NewSentenceBufferWithFallback(fallbackLen int) *SentenceBuffer {
	if fallbackLen <= 0 {
		fallbackLen = DefaultCommaFallbackLen
	}
	return &SentenceBuffer{fallbackLen: fallbackLen}
}

// Add appends a text delta and returns all sentences completed by it, trimmed
// and in order. Splitting depends only on the concatenated text, never on how
// it was chunked.
func (b *SentenceBuffer) Add(delta string) []string {
	b.buffer.WriteString(delta)

	var sentences []string
	content := b.buffer.String()
	for {
		unit, remainder, ok := Extract(content, b.fallbackLen)
		if !ok {
			break
		}
		if trimmed := strings.TrimSpace(unit); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
		content = remainder
	}

	b.buffer.Reset()
	b.buffer.WriteString(content)
	return sentences
}

// Flush returns any remaining text, trimmed, and clears the buffer. Call when
// the stream ends so a response without trailing punctuation is still spoken.
func (b *SentenceBuffer) Flush() string {
	result := strings.TrimSpace(b.buffer.String())
	b.buffer.Reset()
	return result
}

// Pending returns the not-yet-segmented text without clearing it.
func (b *SentenceBuffer) Pending() string {
	return b.buffer.String()
}
