package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/seantiz/asyncread/internal/caller"
	"github.com/seantiz/asyncread/internal/completion"
	"github.com/seantiz/asyncread/internal/reader"
)

const (
	defaultContinuations = completion.PolicyPool
	defaultScenario      = caller.ScenarioMixed

	envLogLevel           = "ASYNCREAD_LOG_LEVEL"
	envDelayRead          = "ASYNCREAD_DELAY_READ"
	envReadLatency        = "ASYNCREAD_READ_LATENCY"
	envPollTimeout        = "ASYNCREAD_POLL_TIMEOUT"
	envFailAbandoned      = "ASYNCREAD_FAIL_ABANDONED"
	envContinuations      = "ASYNCREAD_CONTINUATIONS"
	envScenario           = "ASYNCREAD_SCENARIO"
	envBackgroundInterval = "ASYNCREAD_BACKGROUND_INTERVAL"
	envListenAddr         = "ASYNCREAD_LISTEN_ADDR"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	LogLevel           slog.Level
	Reader             reader.Config
	Continuations      completion.Policy
	Scenario           caller.Scenario
	BackgroundInterval time.Duration

	// ListenAddr enables the HTTP surface when non-empty.
	ListenAddr string
}

// Load reads configuration from environment variables with sensible defaults.
// Unparseable values fall back to their defaults.
func Load() Config {
	cfg := Config{
		LogLevel: slog.LevelInfo,
		Reader: reader.Config{
			ReadLatency: reader.DefaultReadLatency,
			PollTimeout: reader.DefaultPollTimeout,
		},
		Continuations:      defaultContinuations,
		Scenario:           defaultScenario,
		BackgroundInterval: caller.DefaultInterval,
	}

	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	cfg.Reader.DelayRead = parseBool(os.Getenv(envDelayRead), false)
	cfg.Reader.FailAbandoned = parseBool(os.Getenv(envFailAbandoned), false)
	cfg.Reader.ReadLatency = parseDuration(os.Getenv(envReadLatency), reader.DefaultReadLatency)
	cfg.Reader.PollTimeout = parseDuration(os.Getenv(envPollTimeout), reader.DefaultPollTimeout)
	cfg.BackgroundInterval = parseDuration(os.Getenv(envBackgroundInterval), caller.DefaultInterval)

	if v := os.Getenv(envContinuations); v != "" {
		if p, err := completion.ParsePolicy(v); err == nil {
			cfg.Continuations = p
		}
	}
	if v := os.Getenv(envScenario); v != "" {
		if sc, err := caller.ParseScenario(v); err == nil {
			cfg.Scenario = sc
		}
	}
	cfg.ListenAddr = os.Getenv(envListenAddr)

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

// parseDuration accepts Go duration strings; non-positive values are rejected.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
