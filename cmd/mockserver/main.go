package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	wsapi "genai-chat-client/internal/api/ws"
	"genai-chat-client/internal/app"
	"genai-chat-client/internal/config"
	httpapi "genai-chat-client/internal/http"
	"genai-chat-client/internal/service/responder/mock"
)

func main() {
	cfg := config.Load()
	application := app.New("genai-chat-mockserver", cfg)

	chat := wsapi.NewServer(mock.NewFactory(mock.Options{
		Streaming:  cfg.MockServer.Streaming,
		DeltaDelay: cfg.MockServer.DeltaDelay,
	}))

	server := &http.Server{
		Addr:              cfg.MockServer.Addr,
		Handler:           httpapi.NewRouter(application, chat),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}

	go func() {
		log.Info().
			Str("addr", cfg.MockServer.Addr).
			Bool("streaming", cfg.MockServer.Streaming).
			Msg("Mock chat backend started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("mock server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down mock chat backend")
	chat.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	application.Shutdown()
}
