package app

import (
	"strings"
	"time"

	"genai-chat-client/internal/config"
	"genai-chat-client/internal/observability/logging"

	"github.com/rs/zerolog"
)

// Application holds process-wide state for a binary.
type Application struct {
	Name        string
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
}

// New constructs a new Application from the provided configuration.
func New(name string, cfg *config.Configuration) *Application {
	a := &Application{
		Name: name,
		Cfg:  cfg,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("application created")
	return a
}

// setupLogger configures zerolog for the process.
func (a *Application) setupLogger() {
	format := a.Cfg.Observability.LogFormat
	if strings.EqualFold(a.Cfg.Service.Env, "dev") {
		format = "console"
	}

	logging.Init(logging.Config{
		Level:      strings.ToLower(a.Cfg.Observability.LogLevel),
		Format:     format,
		TimeFormat: time.RFC3339,
	})

	a.Logger = logging.WithComponent("application").With().
		Str("service", a.Name).
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", a.Cfg.Service.Env).
		Msg("Logger setup completed")
}

// Start records the startup time.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("starting")

	return nil
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().
		Dur("uptime", time.Since(a.StartupTime)).
		Msg("shutting down")
}
