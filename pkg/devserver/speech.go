package devserver

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// toneSpeech renders utterances as sine-tone WAV clips whose length tracks
// the text length. It stands in for a real speech model during development:
// distinct texts produce audibly distinct clips, and playback duration is
// long enough to observe queue ordering and interruption.
type toneSpeech struct {
	sampleRate int
	toneHz     int
}

const (
	msPerRune   = 55
	minClipMS   = 250
	maxClipMS   = 8000
	toneVolume  = 0.3
	wavBitDepth = 16
)

// Render produces a mono 16-bit PCM WAV clip for text.
func (t *toneSpeech) Render(text string) ([]byte, error) {
	durMS := len([]rune(text)) * msPerRune
	if durMS < minClipMS {
		durMS = minClipMS
	}
	if durMS > maxClipMS {
		durMS = maxClipMS
	}

	samples := t.sampleRate * durMS / 1000
	data := make([]int, samples)
	step := 2 * math.Pi * float64(t.toneHz) / float64(t.sampleRate)
	for i := range data {
		// short fade at both ends avoids clicks
		gain := toneVolume * fade(i, samples, t.sampleRate/100)
		data[i] = int(math.Sin(step*float64(i)) * gain * math.MaxInt16)
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: t.sampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}

	var out seekBuffer
	enc := wav.NewEncoder(&out, t.sampleRate, wavBitDepth, 1, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}
	return out.bytes(), nil
}

func fade(i, total, ramp int) float64 {
	if ramp <= 0 {
		return 1
	}
	if i < ramp {
		return float64(i) / float64(ramp)
	}
	if rem := total - 1 - i; rem < ramp {
		return float64(rem) / float64(ramp)
	}
	return 1
}

// seekBuffer is an in-memory io.WriteSeeker. The wav encoder seeks back to
// patch chunk sizes into the header, which bytes.Buffer cannot support.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}
	b.pos = int(next)
	return next, nil
}

func (b *seekBuffer) bytes() []byte { return b.data }
