package devserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/voxwire-ai/voxwire/pkg/voice"
)

// frame is the wire shape of one answer stream event.
type frame struct {
	Type    voice.EventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Data    any             `json:"data,omitempty"`
}

// Emitter receives answer events as the generator produces them.
type Emitter interface {
	Emit(f frame) error
}

type emitterFunc func(frame) error

func (fn emitterFunc) Emit(f frame) error { return fn(f) }

// Generator produces a streamed answer for one utterance.
type Generator interface {
	Generate(ctx context.Context, req voice.AnswerRequest, out Emitter) error
}

// MockGenerator streams a canned reply in small chunks. Useful for demos
// and for exercising clients without a model behind the server.
type MockGenerator struct {
	// ChunkDelay paces the chunks; zero streams as fast as the client reads.
	ChunkDelay time.Duration
	// Reply overrides the default canned text when set.
	Reply string
}

const mockReply = "Here is a short answer to try the pipeline with. " +
	"It has several sentences, so the voice side gets more than one unit to speak. " +
	"The last one arrives in pieces to mimic token streaming."

const mockFollowup = "Want me to go into more detail?"

func (g *MockGenerator) Generate(ctx context.Context, req voice.AnswerRequest, out Emitter) error {
	reply := g.Reply
	if reply == "" {
		reply = mockReply
	}

	for _, chunk := range splitChunks(reply, 12) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := out.Emit(frame{Type: voice.EventTextChunk, Content: chunk}); err != nil {
			return err
		}
		if g.ChunkDelay > 0 {
			time.Sleep(g.ChunkDelay)
		}
	}

	recs := []voice.Recommendation{
		{ID: "rec-1", Name: "Quiet Bloom", Category: "tea", Reason: "calming, matches the mood you described"},
		{ID: "rec-2", Name: "Morning Signal", Category: "coffee", Reason: "bright and quick to brew"},
	}
	if err := out.Emit(frame{Type: voice.EventRecommendations, Data: recs}); err != nil {
		return err
	}
	return out.Emit(frame{Type: voice.EventFollowup, Content: mockFollowup})
}

// splitChunks slices text into runs of roughly n runes, breaking after
// whitespace so words stay intact across frame boundaries.
func splitChunks(text string, n int) []string {
	var chunks []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if b.Len() >= n && r == ' ' {
			chunks = append(chunks, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

// GeminiGenerator streams answers from the Gemini API.
type GeminiGenerator struct {
	Client *genai.Client
	Model  string
}

// NewGeminiGenerator dials the Gemini API with the given key.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiGenerator{Client: client, Model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req voice.AnswerRequest, out Emitter) error {
	contents := buildContents(req)
	for resp, err := range g.Client.Models.GenerateContentStream(ctx, g.Model, contents, nil) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text == "" {
					continue
				}
				if err := out.Emit(frame{Type: voice.EventTextChunk, Content: part.Text}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func buildContents(req voice.AnswerRequest) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range req.History {
		role := "user"
		if msg.Role == voice.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Text)},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{genai.NewPartFromText(req.Utterance)},
	})
	return contents
}
