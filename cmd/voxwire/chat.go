package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxwire-ai/voxwire/pkg/chat"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat room client",
	Long: `Interactive chat room client.

Joins the configured room over a websocket, prints the room history and
incoming messages, and sends each line you type. The connection retries
automatically after network drops; a room ended by its host is final.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		transport := chat.NewTransport(
			cfg.Chat.URL,
			cfg.Chat.RoomID,
			cfg.Chat.UserName,
			cfg.Chat.Role,
			chat.Options{
				ReconnectDelay: time.Duration(cfg.Chat.ReconnectDelayMS) * time.Millisecond,
				PingInterval:   time.Duration(cfg.Chat.PingIntervalMS) * time.Millisecond,
			},
			logger,
		)

		ended := make(chan struct{})
		transport.SetCallbacks(chat.Callbacks{
			OnHistory: func(msgs []chat.Message) {
				for _, m := range msgs {
					printMessage(m)
				}
			},
			OnMessage: printMessage,
			OnEnded: func() {
				fmt.Println("[room ended]")
				close(ended)
			},
			OnError: func(err error) {
				fmt.Printf("[server] %s\n", err)
			},
			OnStateChange: func(state chat.State) {
				fmt.Printf("[%s]\n", state)
			},
		})

		transport.Start()
		defer transport.Close()

		lines := make(chan string)
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
			close(lines)
		}()

		for {
			select {
			case <-ended:
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				line = strings.TrimSpace(line)
				if line == "/quit" {
					return nil
				}
				if err := transport.SendMessage(line); err != nil {
					if errors.Is(err, chat.ErrBlankMessage) {
						continue
					}
					fmt.Printf("[send failed] %s\n", err)
				}
			}
		}
	},
}

func printMessage(m chat.Message) {
	ts := time.UnixMilli(m.SentAt).Local().Format("15:04:05")
	fmt.Printf("%s %s: %s\n", ts, m.UserName, m.Content)
}
