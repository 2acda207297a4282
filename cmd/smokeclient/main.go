// Command smokeclient sends a fixed list of messages through a chat session
// and prints the resulting transcript. It exits once the replies go quiet.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"genai-chat-client/internal/config"
	"genai-chat-client/internal/observability/logging"
	"genai-chat-client/internal/service/chat"
	"genai-chat-client/internal/service/transcript"
)

func main() {
	cfg := config.Load()
	url := flag.String("url", cfg.Chat.URL(), "chat socket URL")
	idle := flag.Duration("idle", 2*time.Second, "quiet period that ends a reply")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	logging.Init(logging.Config{Level: cfg.Observability.LogLevel, Format: "console"})

	messages := flag.Args()
	if len(messages) == 0 {
		messages = []string{"What records must a notary keep?", "What ID do I need?"}
	}

	changes := make(chan transcript.Change, 256)
	connected := make(chan struct{}, 1)
	session := chat.NewSession(chat.Options{
		URL: *url,
		OnChange: func(c transcript.Change) {
			select {
			case changes <- c:
			default:
			}
		},
		OnStatus: func(st chat.Status) {
			if st == chat.StatusConnected {
				select {
				case connected <- struct{}{}:
				default:
				}
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	go func() {
		_ = session.Run(ctx)
	}()

	select {
	case <-connected:
	case <-ctx.Done():
		log.Fatal().Str("url", *url).Msg("could not connect")
	}

	for _, msg := range messages {
		log.Info().Str("message", msg).Msg("Sending message")
		if err := session.Send(msg); err != nil {
			log.Fatal().Err(err).Msg("failed to send message")
		}
		waitQuiet(ctx, changes, *idle)
	}

	for _, e := range session.Transcript().Entries() {
		fmt.Fprintf(os.Stdout, "%s: %s\n", e.From, e.Text)
	}
}

// waitQuiet returns once no transcript change arrived for idle.
func waitQuiet(ctx context.Context, changes <-chan transcript.Change, idle time.Duration) {
	timer := time.NewTimer(idle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case <-changes:
			timer.Reset(idle)
		}
	}
}
