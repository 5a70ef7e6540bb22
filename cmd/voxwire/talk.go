package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/voxwire-ai/voxwire/pkg/config"
	"github.com/voxwire-ai/voxwire/pkg/voice"
	"github.com/voxwire-ai/voxwire/pkg/voice/player"
	"github.com/voxwire-ai/voxwire/pkg/voice/tts"
)

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Interactive voice conversation client",
	Long: `Interactive voice conversation client.

Each line you type starts a turn: the answer streams in sentence by
sentence and is spoken through the configured player. Typing a new line
while the assistant is talking interrupts it and starts over.

Commands inside the session:
  /stop   interrupt the current answer
  /quit   leave`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		synth, err := buildSynthesizer(cfg)
		if err != nil {
			return err
		}
		play, err := buildPlayer(cfg)
		if err != nil {
			return err
		}

		queue := voice.NewSpeechQueue(synth, play, logger)
		queue.SetOnSpeakingChange(func(speaking bool) {
			if speaking {
				fmt.Println("[speaking]")
			}
		})

		client := &voice.AnswerClient{BaseURL: cfg.Answer.BaseURL}
		conv := voice.NewConversation(client, queue, voice.Identity{
			SessionID: uuid.NewString(),
			UserID:    cfg.Chat.UserName,
			UserType:  "user",
			Source:    "cli",
		}, logger)
		conv.SetCommaFallback(cfg.Voice.CommaFallbackLen)
		conv.SetCallbacks(voice.Callbacks{
			OnText: func(delta string) {
				fmt.Print(delta)
			},
			OnFollowup: func(text string) {
				fmt.Printf("\n[followup] %s\n", text)
			},
			OnRecommendations: func(recs []voice.Recommendation) {
				fmt.Println("\n[recommendations]")
				for _, rec := range recs {
					fmt.Printf("  - %s (%s): %s\n", rec.Name, rec.Category, rec.Reason)
				}
			},
			OnTurnDone: func(t *voice.Turn) {
				if t.Err() != "" {
					fmt.Printf("\n[error] %s\n", t.Err())
				}
				fmt.Print("\n> ")
			},
		})

		fmt.Println("Connected to", cfg.Answer.BaseURL, "- type to talk, /quit to leave.")
		fmt.Print("> ")
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch line {
			case "":
				fmt.Print("> ")
				continue
			case "/quit":
				conv.CancelCurrent()
				return nil
			case "/stop":
				conv.CancelCurrent()
				fmt.Print("> ")
				continue
			}
			conv.BeginTurn(line)
		}
		return scanner.Err()
	},
}

func buildSynthesizer(cfg config.Config) (tts.Synthesizer, error) {
	switch cfg.Speech.Mode {
	case "mock":
		return &tts.MockSynthesizer{Delay: 50 * time.Millisecond}, nil
	default:
		return tts.NewHTTPSynthesizer(cfg.Speech.BaseURL), nil
	}
}

func buildPlayer(cfg config.Config) (player.Player, error) {
	switch cfg.Player.Mode {
	case "exec":
		return player.NewExecPlayer(cfg.Player.Command)
	default:
		return &player.NullPlayer{ClipDuration: 400 * time.Millisecond}, nil
	}
}
