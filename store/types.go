package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type AccountType string

const (
	AccountTypeLDAP  AccountType = "LDAP"
	AccountTypeLocal AccountType = "LOCAL"
)

// Valid reports whether t is one of the known account types
func (t AccountType) Valid() bool {
	return t == AccountTypeLDAP || t == AccountTypeLocal
}

// ParseAccountType converts user input into an AccountType
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown account type %q", s)
	}
	return t, nil
}

type AccountLabel struct {
	Text string `json:"text"`
}

// Account is a stored credential. Labels are derived from RawLabels by the
// caller; the store keeps both as given.
type Account struct {
	ID        string         `json:"id"`
	Labels    []AccountLabel `json:"labels"`
	RawLabels string         `json:"rawLabels"`
	Type      AccountType    `json:"type"`
	Login     string         `json:"login"`
	Password  *string        `json:"password"`
}

// Clone returns a copy of the account that shares no memory with a
func (a Account) Clone() Account {
	c := a
	if a.Labels != nil {
		c.Labels = make([]AccountLabel, len(a.Labels))
		copy(c.Labels, a.Labels)
	}
	if a.Password != nil {
		p := *a.Password
		c.Password = &p
	}
	return c
}

// LocalStorage is the host's persistent key-value facility
type LocalStorage interface {
	// GetItem returns the value stored under key, and false if there is none.
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
}

// HealthChecker is implemented by storages backed by an external resource
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

var (
	ErrStorageUnavailable = errors.New("local storage unavailable")
)

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	ConnMaxLifetime time.Duration
	EnableWAL       bool
}

// DefaultDatabaseConfig returns sensible defaults for database configuration
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		ConnMaxLifetime: 5 * time.Minute,
		EnableWAL:       true,
	}
}

// Store interface for proper resource management
type Store interface {
	Close() error
}
