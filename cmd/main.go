package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"genai-chat-client/internal/app"
	"genai-chat-client/internal/config"
	"genai-chat-client/internal/console"
	"genai-chat-client/internal/events"
	"genai-chat-client/internal/observability"
	"genai-chat-client/internal/service/chat"
)

func main() {
	cfg := config.Load()
	application := app.New("genai-chat-client", cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}
	defer application.Shutdown()

	// Completed transcript entries go to Kafka, or to the log when disabled
	publisher := events.New(&events.Config{
		Enabled:   cfg.Kafka.Enabled,
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.Kafka.TopicTranscript,
		Principal: cfg.Kafka.Principal,
	})
	defer publisher.Close()

	var obs *observability.Server
	if cfg.Observability.MetricsAddr != "" {
		obs = observability.NewServer(cfg.Observability.MetricsAddr)
		obs.Start()
	}

	renderer := console.NewRenderer(os.Stdout, cfg.Chat.Verbose)
	session := chat.NewSession(chat.Options{
		URL:            cfg.Chat.URL(),
		ReconnectDelay: cfg.Chat.ReconnectDelay,
		DialTimeout:    cfg.Chat.DialTimeout,
		WriteTimeout:   cfg.Chat.WriteTimeout,
		PingInterval:   cfg.Chat.PingInterval,
		Publisher:      publisher,
		OnChange:       renderer.OnChange,
		OnStatus: func(st chat.Status) {
			renderer.OnStatus(st)
			if obs != nil && st == chat.StatusConnected {
				obs.SetReady(true)
			}
		},
		OnSources: renderer.OnSources,
	})
	log.Info().Str("sessionId", session.ID()).Str("url", session.URL()).Msg("Chat session created")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(ctx)
	})
	g.Go(func() error {
		defer stop()
		return console.NewREPL(session, renderer, os.Stdin).Run(ctx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("chat client stopped with error")
	}

	if obs != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}
}
