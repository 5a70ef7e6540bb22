package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxClipBytes caps a single synthesized clip so a misbehaving endpoint
// cannot exhaust memory.
const maxClipBytes = 16 << 20

// HTTPSynthesizer calls a speech-synthesis endpoint with one request per
// sentence: POST {"text": ...} answered with binary audio.
type HTTPSynthesizer struct {
	// BaseURL is the speech service root, e.g. "http://localhost:8780".
	BaseURL string

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

// NewHTTPSynthesizer creates a synthesizer against baseURL.
func NewHTTPSynthesizer(baseURL string) *HTTPSynthesizer {
	return &HTTPSynthesizer{BaseURL: baseURL}
}

func (s *HTTPSynthesizer) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// Synthesize requests audio for text. A non-2xx status or an empty body is a
// synthesis failure for this sentence only.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) (Clip, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text})
	if err != nil {
		return Clip{}, fmt.Errorf("encode speech request: %w", err)
	}

	url := strings.TrimRight(s.BaseURL, "/") + "/v1/speech"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Clip{}, fmt.Errorf("build speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return Clip{}, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Clip{}, fmt.Errorf("speech endpoint returned status %s", resp.Status)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxClipBytes))
	if err != nil {
		return Clip{}, fmt.Errorf("read speech response: %w", err)
	}
	if len(audio) == 0 {
		return Clip{}, fmt.Errorf("speech endpoint returned empty audio")
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return Clip{Audio: audio, MediaType: mediaType}, nil
}
