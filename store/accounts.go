package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// DefaultStorageKey is the LocalStorage key the account collection lives under
const DefaultStorageKey = "accounts-store"

// AccountStore holds the ordered account collection for the running session
// and mirrors it to LocalStorage after every mutation.
type AccountStore struct {
	mu       sync.Mutex
	accounts []Account
	storage  LocalStorage
	key      string
	logger   *slog.Logger
	onWrite  func(op Operation)
}

// Operation names a mutating AccountStore call
type Operation string

const (
	OpUpsert Operation = "upsert"
	OpRemove Operation = "remove"
	OpSave   Operation = "save"
)

// AccountStoreOption defines a functional option for configuring AccountStore
type AccountStoreOption func(*AccountStore)

// WithStorageKey overrides DefaultStorageKey
func WithStorageKey(key string) AccountStoreOption {
	return func(s *AccountStore) {
		s.key = key
	}
}

// WithLogger configures the logger used for load and persist events
func WithLogger(logger *slog.Logger) AccountStoreOption {
	return func(s *AccountStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWriteHook registers a callback invoked after every mutating call,
// whether or not the persist succeeded. The hook runs with the store locked
// and must not call back into it.
func WithWriteHook(hook func(op Operation)) AccountStoreOption {
	return func(s *AccountStore) {
		s.onWrite = hook
	}
}

// NewAccountStore loads the persisted collection from storage. A nil storage
// is treated as UnavailableStorage. Load never fails: a missing, unreadable
// or malformed value yields an empty collection.
func NewAccountStore(ctx context.Context, storage LocalStorage, options ...AccountStoreOption) *AccountStore {
	if storage == nil {
		storage = UnavailableStorage()
	}

	s := &AccountStore{
		storage: storage,
		key:     DefaultStorageKey,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(s)
	}

	s.accounts = s.load(ctx)
	return s
}

func (s *AccountStore) load(ctx context.Context) []Account {
	if IsUnavailable(s.storage) {
		s.logger.Debug("Local storage unavailable, starting with empty account list")
		return []Account{}
	}

	raw, ok, err := s.storage.GetItem(ctx, s.key)
	if err != nil {
		s.logger.Debug("Could not read accounts from storage", "key", s.key, "error", err)
		return []Account{}
	}
	if !ok || raw == "" {
		return []Account{}
	}

	accounts, err := decodeAccounts(raw)
	if err != nil {
		s.logger.Debug("Ignoring malformed persisted accounts", "key", s.key, "error", err)
		return []Account{}
	}

	s.logger.Debug("Loaded accounts from storage", "key", s.key, "count", len(accounts))
	return accounts
}

// decodeAccounts accepts only a JSON array; null and any other shape are rejected.
func decodeAccounts(raw string) ([]Account, error) {
	var probe json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, err
	}
	probe = bytes.TrimSpace(probe)
	if len(probe) == 0 || probe[0] != '[' {
		return nil, fmt.Errorf("persisted value is not a list")
	}

	var accounts []Account
	if err := json.Unmarshal(probe, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Accounts returns the live backing slice. Elements may be edited in place;
// call Save afterwards to persist such edits.
func (s *AccountStore) Accounts() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts
}

// Snapshot returns a deep copy of the collection, safe to hold across mutations
func (s *AccountStore) Snapshot() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Account, len(s.accounts))
	for i, a := range s.accounts {
		result[i] = a.Clone()
	}
	return result
}

func (s *AccountStore) Get(id string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		return s.accounts[i].Clone(), true
	}
	return Account{}, false
}

func (s *AccountStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// Upsert appends account, or replaces the entry with the same ID at its
// current position, then persists the whole collection.
func (s *AccountStore) Upsert(ctx context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(account.ID); i >= 0 {
		s.accounts[i] = account
	} else {
		s.accounts = append(s.accounts, account)
	}

	return s.persist(ctx, OpUpsert)
}

// Remove drops every account with the given ID and persists, even when
// nothing matched.
func (s *AccountStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.ID != id {
			remaining = append(remaining, a)
		}
	}
	s.accounts = remaining

	return s.persist(ctx, OpRemove)
}

// Save overwrites the persisted value with the current collection
func (s *AccountStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(ctx, OpSave)
}

func (s *AccountStore) indexOf(id string) int {
	for i := range s.accounts {
		if s.accounts[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *AccountStore) persist(ctx context.Context, op Operation) error {
	if s.onWrite != nil {
		defer s.onWrite(op)
	}

	if IsUnavailable(s.storage) {
		return nil
	}

	data, err := encodeAccounts(s.accounts)
	if err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}

	if err := s.storage.SetItem(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to persist accounts: %w", err)
	}

	s.logger.Debug("Persisted accounts", "key", s.key, "count", len(s.accounts))
	return nil
}

func encodeAccounts(accounts []Account) (string, error) {
	out := make([]Account, len(accounts))
	for i, a := range accounts {
		if a.Labels == nil {
			a.Labels = []AccountLabel{}
		}
		out[i] = a
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
