package voice

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// AnswerRequest is the payload sent to the answer endpoint for one turn.
type AnswerRequest struct {
	History   []Message `json:"history"`
	Utterance string    `json:"utterance"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	UserType  string    `json:"user_type"`
	Source    string    `json:"source"`
}

// AnswerClient opens streamed answer requests against the answer endpoint.
// The zero value is not usable; set BaseURL.
type AnswerClient struct {
	// BaseURL is the answer service root, e.g. "http://localhost:8780".
	BaseURL string

	// HTTPClient defaults to a client with no overall timeout; the stream is
	// bounded by the request context instead.
	HTTPClient *http.Client
}

func (c *AnswerClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 0}
}

// Open issues the turn request and returns the event stream. The request is
// bound to ctx: cancelling ctx tears down the underlying network read.
//
// A stream is consumed once via Next until io.EOF; it is not restartable.
func (c *AnswerClient) Open(ctx context.Context, req AnswerRequest) (*AnswerStream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode answer request: %w", err)
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/v1/answer"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build answer request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("open answer stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("answer endpoint returned status %s", resp.Status)
	}

	return &AnswerStream{
		reader: bufio.NewReader(resp.Body),
		body:   resp.Body,
	}, nil
}

// AnswerStream reads server-sent event frames from an open answer request.
type AnswerStream struct {
	reader *bufio.Reader
	body   io.Closer
}

// Next returns the next recognized event. Unrecognized frame types are
// skipped so the server can add kinds without breaking older clients. It
// returns io.EOF at the natural end of the stream and the underlying error if
// the transport fails or the request context is cancelled.
func (s *AnswerStream) Next() (Event, error) {
	for {
		payload, err := s.nextFrame()
		if err != nil {
			return Event{}, err
		}

		var frame eventFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			// one malformed frame must not abort the turn
			continue
		}

		switch EventType(frame.Type) {
		case EventTextChunk:
			return Event{Type: EventTextChunk, Text: frame.Content}, nil
		case EventFollowup:
			return Event{Type: EventFollowup, Text: frame.Content}, nil
		case EventRecommendations:
			var recs []Recommendation
			if len(frame.Data) > 0 {
				if err := json.Unmarshal(frame.Data, &recs); err != nil {
					continue
				}
			}
			return Event{Type: EventRecommendations, Recommendations: recs}, nil
		case EventError:
			return Event{Type: EventError, Text: frame.Content}, nil
		default:
			continue
		}
	}
}

// nextFrame reads one SSE frame and returns its data payload.
func (s *AnswerStream) nextFrame() ([]byte, error) {
	var data bytes.Buffer

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if data.Len() > 0 {
				return finishFrame(data.Bytes())
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			continue
		}

		if strings.HasPrefix(line, "data:") {
			chunk := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(chunk)
		}

		if err == io.EOF {
			if data.Len() > 0 {
				return finishFrame(data.Bytes())
			}
			return nil, io.EOF
		}
	}
}

func finishFrame(payload []byte) ([]byte, error) {
	if strings.TrimSpace(string(payload)) == "[DONE]" {
		return nil, io.EOF
	}
	return payload, nil
}

// Close releases the underlying response body. Safe to call more than once.
func (s *AnswerStream) Close() error {
	if s.body != nil {
		err := s.body.Close()
		s.body = nil
		return err
	}
	return nil
}
