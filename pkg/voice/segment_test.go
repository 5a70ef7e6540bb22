package voice

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractBasicSentence(t *testing.T) {
	unit, remainder, ok := Extract("Hello there. More text", 0)
	if !ok {
		t.Fatal("expected a sentence to be extracted")
	}
	if unit != "Hello there." {
		t.Errorf("unit = %q, want %q", unit, "Hello there.")
	}
	if remainder != " More text" {
		t.Errorf("remainder = %q, want %q", remainder, " More text")
	}
}

func TestExtractLossless(t *testing.T) {
	inputs := []string{
		"Hello there. More text",
		"One! Two? Three.",
		`He said "stop." Then left.`,
		"No boundary here",
		"Ends exactly here.",
		"What?! Really...",
		"(Aside.) Next",
	}
	for _, in := range inputs {
		unit, remainder, _ := Extract(in, 0)
		if unit+remainder != in {
			t.Errorf("Extract(%q) lost text: %q + %q", in, unit, remainder)
		}
	}
}

func TestExtractPunctuationRun(t *testing.T) {
	unit, _, ok := Extract("Really?! Yes.", 0)
	if !ok || unit != "Really?!" {
		t.Errorf("unit = %q, ok = %v, want %q", unit, ok, "Really?!")
	}
}

func TestExtractTrailingClosers(t *testing.T) {
	unit, _, ok := Extract(`She said "go." Then waited.`, 0)
	if !ok || unit != `She said "go."` {
		t.Errorf("unit = %q, ok = %v, want %q", unit, ok, `She said "go."`)
	}
}

func TestExtractEndOfInputBoundary(t *testing.T) {
	unit, remainder, ok := Extract("All done.", 0)
	if !ok {
		t.Fatal("terminal punctuation at end of input should complete a sentence")
	}
	if unit != "All done." || remainder != "" {
		t.Errorf("got %q / %q", unit, remainder)
	}
}

func TestExtractPeriodInsideWordIsNotABoundary(t *testing.T) {
	unit, _, ok := Extract("version 1.2 is ready", 0)
	if ok {
		t.Errorf("mid-token period should not split, got unit %q", unit)
	}
}

func TestExtractNoBoundary(t *testing.T) {
	unit, remainder, ok := Extract("still streaming", 0)
	if ok || unit != "" || remainder != "still streaming" {
		t.Errorf("got ok=%v unit=%q remainder=%q", ok, unit, remainder)
	}
}

func TestExtractCommaFallback(t *testing.T) {
	long := "first clause with plenty of words, second clause keeps going and going without any terminal punctuation"
	if len(long) <= DefaultCommaFallbackLen {
		t.Fatal("test input must exceed the fallback threshold")
	}
	unit, remainder, ok := Extract(long, 0)
	if !ok {
		t.Fatal("expected comma fallback to fire")
	}
	if unit != "first clause with plenty of words," {
		t.Errorf("unit = %q", unit)
	}
	if unit+remainder != long {
		t.Error("comma fallback lost text")
	}
}

func TestExtractCommaFallbackBelowThreshold(t *testing.T) {
	if _, _, ok := Extract("short, clause", 0); ok {
		t.Error("comma fallback must not fire under the threshold")
	}
}

func TestExtractCustomFallbackLen(t *testing.T) {
	unit, _, ok := Extract("alpha, beta gamma", 10)
	if !ok || unit != "alpha," {
		t.Errorf("unit = %q, ok = %v", unit, ok)
	}
}

func TestSentenceBufferChunkingIndependence(t *testing.T) {
	text := "First sentence here. Second one follows! And a third? Trailing bit"
	splits := [][]string{
		{text},
		{"First sentence here. Second one f", "ollows! And a third? Trailing bit"},
		strings.SplitAfter(text, " "),
		chunked(text, 3),
		chunked(text, 1),
	}

	want := []string{"First sentence here.", "Second one follows!", "And a third?"}
	for i, chunks := range splits {
		buf := NewSentenceBuffer()
		var got []string
		for _, c := range chunks {
			got = append(got, buf.Add(c)...)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("split %d: sentences = %v, want %v", i, got, want)
		}
		if flushed := buf.Flush(); flushed != "Trailing bit" {
			t.Errorf("split %d: flush = %q", i, flushed)
		}
	}
}

func chunked(s string, n int) []string {
	var out []string
	for len(s) > n {
		out = append(out, s[:n])
		s = s[n:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func TestSentenceBufferMultipleSentencesInOneDelta(t *testing.T) {
	buf := NewSentenceBuffer()
	got := buf.Add("One. Two. Three. ")
	want := []string{"One.", "Two.", "Three."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sentences = %v, want %v", got, want)
	}
	// The remainder keeps the trailing space so no bytes are lost; only
	// speakable content matters here.
	if pending := buf.Pending(); strings.TrimSpace(pending) != "" {
		t.Errorf("pending = %q, want no speakable remainder", pending)
	}
}

func TestSentenceBufferFlushClearsState(t *testing.T) {
	buf := NewSentenceBuffer()
	buf.Add("unterminated text")
	if got := buf.Flush(); got != "unterminated text" {
		t.Errorf("flush = %q", got)
	}
	if got := buf.Flush(); got != "" {
		t.Errorf("second flush = %q, want empty", got)
	}
}

func TestSentenceBufferPunctuationOnlyUnitPassesThrough(t *testing.T) {
	// Non-speakable units are filtered downstream, not by the segmenter.
	buf := NewSentenceBuffer()
	got := buf.Add("   . ")
	if !reflect.DeepEqual(got, []string{"."}) {
		t.Errorf("sentences = %v, want [.]", got)
	}
}
