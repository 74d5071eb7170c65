package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/split73/SaaSoft-test/store"
	"github.com/split73/SaaSoft-test/telemetry"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := loadConfig(nil)
	require.NoError(t, err)

	require.False(t, config.CLIMode)
	require.Equal(t, "dark", config.Theme)
	require.Equal(t, "8080", config.Port)
	require.Equal(t, "sqlite", config.Storage)
	require.Equal(t, store.DefaultStorageKey, config.StorageKey)
	require.Equal(t, "debug", config.LogLevel)
	require.Equal(t, 5, config.AccountCount)
	require.Equal(t, 60, config.RequestsPerMin)
}

func TestLoadConfig_EnvAndFlags(t *testing.T) {
	t.Setenv("ACCOUNTS_PORT", "9090")
	t.Setenv("ACCOUNTS_STORAGE", "memory")
	t.Setenv("ACCOUNTS_LOG_LEVEL", "warn")

	config, err := loadConfig([]string{"-port", "7070", "-cli"})
	require.NoError(t, err)

	require.Equal(t, "7070", config.Port, "flag overrides env")
	require.Equal(t, "memory", config.Storage, "env overrides default")
	require.Equal(t, "warn", config.LogLevel)
	require.True(t, config.CLIMode)
}

func TestLoadConfig_UnknownStorage(t *testing.T) {
	_, err := loadConfig([]string{"-storage", "s3"})
	require.ErrorContains(t, err, "unknown storage backend")
}

func TestOpenStorage(t *testing.T) {
	memory, err := openStorage(Config{Storage: "memory"})
	require.NoError(t, err)
	require.False(t, store.IsUnavailable(memory))

	none, err := openStorage(Config{Storage: "none"})
	require.NoError(t, err)
	require.True(t, store.IsUnavailable(none))

	sqlite, err := openStorage(Config{Storage: "sqlite", DataDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, sqlite.(store.Store).Close())
}

func TestInitializeApplication(t *testing.T) {
	ctx := context.Background()
	config := Config{
		Port:       "0",
		Storage:    "sqlite",
		DataDir:    t.TempDir(),
		StorageKey: "test-accounts",
		LogLevel:   "error",
	}

	components, err := initializeApplication(ctx, config)
	require.NoError(t, err)
	require.Nil(t, components.Simulator)

	acct := store.Account{ID: "1", Type: store.AccountTypeLocal, Login: "alice", Labels: []store.AccountLabel{}}
	require.NoError(t, components.AccountStore.Upsert(ctx, acct))
	require.Equal(t, 1, components.Telemetry.GetStatsCollector().CollectStats().AccountCount)
	require.NoError(t, components.Close())

	reopened, err := initializeApplication(ctx, config)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.AccountStore.Get("1")
	require.True(t, ok)
	require.Equal(t, acct, got)
}

func TestSimulator_Operations(t *testing.T) {
	tel := telemetry.New(telemetry.WithCLIMode(true))
	defer tel.Stop()

	storage := store.NewMemoryStorage()
	accountStore := store.NewAccountStore(context.Background(), storage)
	ts := httptest.NewServer(createHTTPServer(accountStore, storage, tel, ":0").Handler)
	defer ts.Close()

	_, port, err := net.SplitHostPort(ts.Listener.Addr().String())
	require.NoError(t, err)

	sim := NewSimulator(slog.New(slog.NewTextHandler(io.Discard, nil)), SimulatorOptions{
		AccountCount: 2,
		ServerPort:   ":" + port,
	})
	require.NoError(t, sim.Start())
	defer sim.Stop()
	require.Equal(t, 2, accountStore.Len())

	loop := &accountLoop{apiClient: sim.apiClient, logger: sim.logger, worker: 9, ctx: context.Background()}
	require.NoError(t, loop.create())
	require.Equal(t, 3, accountStore.Len())

	for _, op := range []func() error{loop.update, loop.read, loop.list, loop.removeAndRecreate, loop.read} {
		require.NoError(t, op())
	}

	stored, ok := accountStore.Get(loop.account.ID)
	require.True(t, ok)
	require.Equal(t, loop.expected, hashAccount(stored))
	require.Equal(t, 3, accountStore.Len(), "recreate replaces the removed account")
}

func TestPreparePort(t *testing.T) {
	port, err := preparePort("0")
	require.NoError(t, err)
	require.Equal(t, ":0", port)

	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer listener.Close()

	_, taken, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	_, err = preparePort(taken)
	require.Error(t, err)
}
