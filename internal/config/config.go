package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Configuration holds all runtime settings for the chat client and the mock server.
type Configuration struct {
	Service       ServiceConfig
	Chat          ChatConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
	MockServer    MockServerConfig
}

type ServiceConfig struct {
	Principal string
	Env       string
}

// ChatConfig controls the socket session.
type ChatConfig struct {
	BaseURL        string
	Path           string
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration // 0 disables keepalive pings
	Verbose        bool
}

// URL returns the full socket URL the client dials.
func (c ChatConfig) URL() string {
	base := strings.TrimRight(c.BaseURL, "/")
	path := c.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicTranscript string
	Principal       string
}

type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

type MockServerConfig struct {
	Addr       string
	Streaming  bool
	DeltaDelay time.Duration
}

// Load reads configuration from the environment, after applying an optional .env file.
func Load() *Configuration {
	_ = godotenv.Load()

	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-chat-client")

	return &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			Env:       envOrDefault("ENV", "prod"),
		},
		Chat: ChatConfig{
			BaseURL:        envOrDefault("CHAT_BASE_URL", "ws://localhost:8000"),
			Path:           envOrDefault("CHAT_WS_PATH", "/ws"),
			ReconnectDelay: envOrDefaultDuration("CHAT_RECONNECT_DELAY", 5*time.Second),
			DialTimeout:    envOrDefaultDuration("CHAT_DIAL_TIMEOUT", 10*time.Second),
			WriteTimeout:   envOrDefaultDuration("CHAT_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:   envOrDefaultDuration("CHAT_PING_INTERVAL", 30*time.Second),
			Verbose:        envOrDefaultBool("CHAT_VERBOSE", false),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         splitList(os.Getenv("KAFKA_BROKERS")),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "chat.transcript.entry"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: os.Getenv("METRICS_ADDR"),
		},
		MockServer: MockServerConfig{
			Addr:       envOrDefault("MOCK_SERVER_ADDR", ":8000"),
			Streaming:  envOrDefaultBool("MOCK_STREAMING", true),
			DeltaDelay: envOrDefaultDuration("MOCK_DELTA_DELAY", 30*time.Millisecond),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
