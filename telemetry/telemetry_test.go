package telemetry

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/split73/SaaSoft-test/store"
	"github.com/stretchr/testify/require"
)

func TestTelemetry_Options(t *testing.T) {
	defaultTelemetry := New(WithCLIMode(true))
	defer defaultTelemetry.Stop()

	require.NotNil(t, defaultTelemetry.Logger, "Logger should be created")
	require.NotNil(t, defaultTelemetry.LogCapture, "LogCapture should be created")
	require.NotNil(t, defaultTelemetry.StatsCollector, "StatsCollector should be created")
	require.Equal(t, slog.LevelDebug, defaultTelemetry.logLevel, "Default log level should be debug")

	infoTelemetry := New(WithCLIMode(true), WithLogLevel("info"))
	defer infoTelemetry.Stop()
	require.Equal(t, slog.LevelInfo, infoTelemetry.logLevel)

	unknown := New(WithCLIMode(true), WithLogLevel("verbose"))
	defer unknown.Stop()
	require.Equal(t, slog.LevelDebug, unknown.logLevel, "Unknown level keeps the default")
}

func TestTelemetry_LoggerWritesToCapture(t *testing.T) {
	tel := New(WithCLIMode(true), WithLogLevel("warn"))
	defer tel.Stop()

	tel.Logger.Info("ignored")
	tel.Logger.Warn("persist failed", "key", "accounts-store")

	logs := tel.LogCapture.GetRecentLogs(10)
	require.Len(t, logs, 1)
	require.Contains(t, logs[0].Message, "persist failed")
	require.Contains(t, logs[0].Message, "accounts-store")
}

func TestLogCapture_RingBuffer(t *testing.T) {
	lc := NewLogCapture(2)
	var mirror bytes.Buffer
	lc.AddWriter(&mirror)

	var seen []string
	lc.SetLogCallback(func(e LogEntry) { seen = append(seen, e.Message) })

	for _, line := range []string{"a", "b", "c"} {
		_, err := lc.Write([]byte(line))
		require.NoError(t, err)
	}

	recent := lc.GetRecentLogs(10)
	require.Len(t, recent, 2)
	require.Equal(t, "b", recent[0].Message)
	require.Equal(t, "c", recent[1].Message)
	require.Len(t, lc.GetRecentLogs(1), 1)
	require.Equal(t, "abc", mirror.String())
	require.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestStatsCollector_Counts(t *testing.T) {
	sc := NewStatsCollector()
	defer sc.Stop()

	sc.TrackStoreWrite(store.OpUpsert)
	sc.TrackStoreWrite(store.OpUpsert)
	sc.TrackStoreWrite(store.OpRemove)
	sc.TrackStoreWrite(store.OpSave)
	sc.IncrementRequest()
	sc.SetAccountCounter(func() int { return 7 })

	stats := sc.CollectStats()
	require.Equal(t, int64(2), stats.Upserts)
	require.Equal(t, int64(1), stats.Removes)
	require.Equal(t, int64(1), stats.Saves)
	require.Equal(t, int64(1), stats.TotalRequests)
	require.Equal(t, 7, stats.AccountCount)
	require.NotEmpty(t, stats.MemoryUsage)
}

func TestStatsCollector_HookedIntoAccountStore(t *testing.T) {
	sc := NewStatsCollector()
	defer sc.Stop()

	ctx := t.Context()
	s := store.NewAccountStore(ctx, store.NewMemoryStorage(), store.WithWriteHook(sc.TrackStoreWrite))
	sc.SetAccountCounter(s.Len)

	require.NoError(t, s.Upsert(ctx, store.Account{ID: "1", Type: store.AccountTypeLocal}))
	require.NoError(t, s.Remove(ctx, "missing"))

	stats := sc.CollectStats()
	require.Equal(t, int64(1), stats.Upserts)
	require.Equal(t, int64(1), stats.Removes)
	require.Equal(t, 1, stats.AccountCount)
}

func TestParseLevel(t *testing.T) {
	for input, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, ok := ParseLevel(input)
		require.True(t, ok, input)
		require.Equal(t, want, got, input)
	}

	_, ok := ParseLevel("loud")
	require.False(t, ok)
}

func TestFormatBytes(t *testing.T) {
	require.Equal(t, "512 B", formatBytes(512))
	require.Equal(t, "1.0 KB", formatBytes(1024))
	require.Equal(t, "1.5 MB", formatBytes(1536*1024))
}
