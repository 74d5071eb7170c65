package restapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/split73/SaaSoft-test/store"
	"github.com/split73/SaaSoft-test/telemetry"
	"github.com/stretchr/testify/require"
)

type failingStorage struct {
	store.LocalStorage
}

func (failingStorage) SetItem(context.Context, string, string) error {
	return errors.New("quota exceeded")
}

type unhealthyStorage struct {
	store.LocalStorage
}

func (unhealthyStorage) HealthCheck(context.Context) error {
	return errors.New("database is closed")
}

func setupServer(t *testing.T, storage store.LocalStorage) (*Client, *store.AccountStore, *telemetry.Telemetry) {
	t.Helper()

	tel := telemetry.New(telemetry.WithCLIMode(true))
	t.Cleanup(tel.Stop)

	accountStore := store.NewAccountStore(context.Background(), storage,
		store.WithLogger(tel.GetLogger()),
		store.WithWriteHook(tel.GetStatsCollector().TrackStoreWrite),
	)

	server := NewServer(
		WithAccountStore(accountStore),
		WithStorage(storage),
		WithTelemetry(tel),
	)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return NewClient(ts.URL), accountStore, tel
}

func strPtr(s string) *string {
	return &s
}

func TestNewServer_Options(t *testing.T) {
	tel := telemetry.New(telemetry.WithCLIMode(true))
	defer tel.Stop()
	storage := store.NewMemoryStorage()
	accountStore := store.NewAccountStore(context.Background(), storage)

	server := NewServer(
		WithAccountStore(accountStore),
		WithStorage(storage),
		WithTelemetry(tel),
	)

	require.Equal(t, accountStore, server.accountStore, "Account store should be set")
	require.Equal(t, storage, server.storage, "Storage should be set")
	require.Equal(t, tel, server.telemetry, "Telemetry should be set")
	require.NotNil(t, server.logger, "Logger should be set from telemetry")
}

func TestServer_AccountLifecycle(t *testing.T) {
	ctx := context.Background()
	client, accountStore, tel := setupServer(t, store.NewMemoryStorage())

	accounts, err := client.ListAccounts(ctx)
	require.NoError(t, err)
	require.Empty(t, accounts)

	created, err := client.UpsertAccount(ctx, store.Account{
		ID:        "1",
		RawLabels: "work; vpn",
		Type:      store.AccountTypeLocal,
		Login:     "alice",
		Password:  strPtr("x"),
	})
	require.NoError(t, err)
	require.Equal(t, []store.AccountLabel{{Text: "work"}, {Text: "vpn"}}, created.Labels, "labels parsed from raw text")

	updated, err := client.UpsertAccount(ctx, store.Account{
		ID:       "1",
		Labels:   []store.AccountLabel{{Text: "explicit"}},
		Type:     store.AccountTypeLocal,
		Login:    "alice2",
		Password: strPtr("x"),
	})
	require.NoError(t, err)
	require.Equal(t, "alice2", updated.Login)
	require.Equal(t, []store.AccountLabel{{Text: "explicit"}}, updated.Labels, "explicit labels are kept")

	got, err := client.GetAccount(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, *updated, *got)
	require.Equal(t, 1, accountStore.Len())

	require.NoError(t, client.RemoveAccount(ctx, "1"))
	require.NoError(t, client.RemoveAccount(ctx, "1"), "removing a missing id is not an error")
	require.Equal(t, 0, accountStore.Len())

	_, err = client.GetAccount(ctx, "1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	stats := tel.GetStatsCollector().CollectStats()
	require.Equal(t, int64(2), stats.Upserts)
	require.Equal(t, int64(2), stats.Removes)
	require.Equal(t, int64(7), stats.TotalRequests)
}

func TestServer_CreateGeneratesID(t *testing.T) {
	ctx := context.Background()
	client, accountStore, _ := setupServer(t, store.NewMemoryStorage())

	created, err := client.CreateAccount(ctx, store.Account{Type: store.AccountTypeLDAP, Login: "bob"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Nil(t, created.Password)

	stored, ok := accountStore.Get(created.ID)
	require.True(t, ok)
	require.Equal(t, *created, stored)
}

func TestServer_Save(t *testing.T) {
	ctx := context.Background()
	storage := store.NewMemoryStorage()
	client, accountStore, _ := setupServer(t, storage)

	_, err := client.UpsertAccount(ctx, store.Account{ID: "1", Type: store.AccountTypeLocal, Login: "alice"})
	require.NoError(t, err)

	accountStore.Accounts()[0].Login = "edited in place"
	require.NoError(t, client.Save(ctx))

	reloaded := store.NewAccountStore(ctx, storage)
	got, ok := reloaded.Get("1")
	require.True(t, ok)
	require.Equal(t, "edited in place", got.Login)
}

func TestServer_BadRequests(t *testing.T) {
	client, _, _ := setupServer(t, store.NewMemoryStorage())

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "not json"},
		{name: "missing type", body: `{"login":"alice"}`},
		{name: "unknown type", body: `{"type":"KERBEROS","login":"alice"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPut, client.baseURL+"/accounts/1", strings.NewReader(tt.body))
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestServer_WriteFailure(t *testing.T) {
	ctx := context.Background()
	client, _, _ := setupServer(t, failingStorage{store.NewMemoryStorage()})

	_, err := client.UpsertAccount(ctx, store.Account{ID: "1", Type: store.AccountTypeLocal})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)

	err = client.Save(ctx)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestServer_HealthCheck(t *testing.T) {
	client, _, _ := setupServer(t, store.NewMemoryStorage())
	resp, err := http.Get(client.baseURL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	client, _, _ = setupServer(t, unhealthyStorage{store.NewMemoryStorage()})
	resp, err = http.Get(client.baseURL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
