// Package devserver hosts the HTTP surface a voice client talks to during
// development: a streaming answer endpoint, a speech synthesis endpoint,
// and a chat room websocket.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxwire-ai/voxwire/pkg/config"
	"github.com/voxwire-ai/voxwire/pkg/voice"
)

// Server serves /v1/answer, /v1/speech, /v1/chat and /healthz.
type Server struct {
	cfg       config.Config
	logger    *slog.Logger
	generator Generator
	speech    *toneSpeech
	hub       *chatHub
	httpSrv   *http.Server
}

// New assembles a server from config. Answer mode "gemini" requires an API
// key; "mock" needs nothing.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "devserver"))

	var gen Generator
	switch cfg.Answer.Mode {
	case "gemini":
		if cfg.Answer.APIKey == "" {
			return nil, errors.New("answer.api_key (or GEMINI_API_KEY) must be set when mode=gemini")
		}
		g, err := NewGeminiGenerator(ctx, cfg.Answer.APIKey, cfg.Answer.Model)
		if err != nil {
			return nil, err
		}
		gen = g
	default:
		gen = &MockGenerator{ChunkDelay: 30 * time.Millisecond}
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		generator: gen,
		speech:    &toneSpeech{sampleRate: cfg.Speech.SampleRate, toneHz: cfg.Speech.ToneHz},
		hub:       newChatHub(logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/answer", s.handleAnswer)
	mux.HandleFunc("/v1/speech", s.handleSpeech)
	mux.HandleFunc("/v1/chat", s.hub.ServeWS)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Bind, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the routed mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening",
		slog.String("addr", s.httpSrv.Addr),
		slog.String("answer_mode", s.cfg.Answer.Mode))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req voice.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Utterance == "" {
		http.Error(w, "utterance is required", http.StatusBadRequest)
		return
	}

	sw, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	logger := s.logger.With(slog.String("session_id", req.SessionID))
	logger.Info("answer stream started", slog.Int("history_len", len(req.History)))

	out := emitterFunc(func(f frame) error { return sw.Send(f) })
	if err := s.generator.Generate(r.Context(), req, out); err != nil {
		if r.Context().Err() != nil {
			logger.Info("answer stream abandoned by client")
			return
		}
		logger.Error("answer generation failed", slog.String("error", err.Error()))
		sw.Send(frame{Type: voice.EventError, Content: "Something went wrong while answering. Please try again."})
	}
	sw.Done()
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	clip, err := s.speech.Render(req.Text)
	if err != nil {
		s.logger.Error("speech render failed", slog.String("error", err.Error()))
		http.Error(w, "synthesis failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	w.Write(clip)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
