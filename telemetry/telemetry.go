package telemetry

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/split73/SaaSoft-test/constants"
)

// Telemetry provides centralized logging and stats collection
type Telemetry struct {
	Logger         *slog.Logger
	LogCapture     *LogCapture
	StatsCollector *StatsCollector

	logLevel slog.Level
	cliMode  bool
}

// Option configures Telemetry
type Option func(*Telemetry)

// WithCLIMode keeps logs out of stderr so they do not corrupt the terminal UI
func WithCLIMode(enabled bool) Option {
	return func(t *Telemetry) {
		t.cliMode = enabled
	}
}

// WithLogLevel sets the minimum level; unknown values keep the default (debug)
func WithLogLevel(level string) Option {
	return func(t *Telemetry) {
		if parsed, ok := ParseLevel(level); ok {
			t.logLevel = parsed
		}
	}
}

// ParseLevel maps debug, info, warn and error to slog levels
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelDebug, false
}

// New creates a new telemetry instance
func New(options ...Option) *Telemetry {
	t := &Telemetry{
		logLevel: slog.LevelDebug,
	}
	for _, option := range options {
		option(t)
	}

	t.LogCapture = NewLogCapture(constants.DefaultLogBufferSize)
	if !t.cliMode {
		t.LogCapture.AddWriter(os.Stderr)
	}

	t.Logger = slog.New(tint.NewHandler(t.LogCapture, &tint.Options{
		Level:      t.logLevel,
		TimeFormat: time.TimeOnly,
	}))
	t.StatsCollector = NewStatsCollector()

	return t
}

func (t *Telemetry) GetLogger() *slog.Logger {
	return t.Logger
}

func (t *Telemetry) GetStatsCollector() *StatsCollector {
	return t.StatsCollector
}

// SetupLogging routes the default slog logger through this telemetry
func (t *Telemetry) SetupLogging() {
	slog.SetDefault(t.Logger)
}

// Start begins background telemetry collection
func (t *Telemetry) Start() {
	t.StatsCollector.StartRequestRateCalculation(constants.DefaultStatsInterval)
}

// Stop ends background collection
func (t *Telemetry) Stop() {
	t.StatsCollector.Stop()
}
