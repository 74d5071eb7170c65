package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/split73/SaaSoft-test/constants"
	"github.com/split73/SaaSoft-test/labels"
	"github.com/split73/SaaSoft-test/restapi"
	"github.com/split73/SaaSoft-test/store"
)

type SimulatorOptions struct {
	AccountCount   int
	RequestsPerMin int
	ServerPort     string
}

// Simulator drives the REST API with one worker per account and checks that
// what it reads back matches what it last wrote.
type Simulator struct {
	apiClient *restapi.Client
	logger    *slog.Logger
	options   SimulatorOptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type accountLoop struct {
	apiClient *restapi.Client
	logger    *slog.Logger
	worker    int

	mu       sync.Mutex
	account  store.Account
	present  bool
	expected string

	ctx    context.Context
	ticker *time.Ticker
}

// hashAccount fingerprints the fields a worker changes
func hashAccount(a store.Account) string {
	password := "<nil>"
	if a.Password != nil {
		password = *a.Password
	}
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%s", a.ID, a.Type, a.Login, a.RawLabels, password)))
	return fmt.Sprintf("%x", hash)
}

func NewSimulator(logger *slog.Logger, options SimulatorOptions) *Simulator {
	ctx, cancel := context.WithCancel(context.Background())
	baseURL := fmt.Sprintf("http://localhost%s", options.ServerPort)

	return &Simulator{
		apiClient: restapi.NewClient(baseURL),
		logger:    logger,
		options:   options,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Simulator) Start() error {
	s.logger.Info("Starting load generator",
		"accounts", s.options.AccountCount,
		"requests_per_min", s.options.RequestsPerMin,
	)

	for i := 0; i < s.options.AccountCount; i++ {
		loop := &accountLoop{
			apiClient: s.apiClient,
			logger:    s.logger,
			worker:    i + 1,
			ctx:       s.ctx,
		}
		if err := loop.create(); err != nil {
			return fmt.Errorf("failed to create account for worker %d: %w", i+1, err)
		}

		s.wg.Add(1)
		go s.runAccountLoop(loop)
	}

	s.logger.Info("Load generator accounts created", "count", s.options.AccountCount)
	return nil
}

func (s *Simulator) Stop() {
	s.logger.Info("Stopping load generator...")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Load generator stopped")
	case <-time.After(2 * time.Second):
		s.logger.Warn("Load generator stop timed out, some goroutines may still be running")
	}
}

func (s *Simulator) runAccountLoop(al *accountLoop) {
	defer s.wg.Done()

	if s.options.RequestsPerMin <= 0 {
		return
	}

	interval := time.Duration(constants.MillisecondsPerMinute/s.options.RequestsPerMin) * time.Millisecond
	al.ticker = time.NewTicker(interval)
	defer al.ticker.Stop()

	al.run()
}

func (al *accountLoop) run() {
	operations := []func() error{
		al.update,
		al.read,
		al.read,
		al.list,
		al.removeAndRecreate,
	}

	for {
		select {
		case <-al.ctx.Done():
			return
		case <-al.ticker.C:
			operation := operations[rand.Intn(len(operations))]
			if err := operation(); err != nil && !errors.Is(err, context.Canceled) {
				al.logger.Error("Load generator operation failed", "worker", al.worker, "error", err)
			}
		}
	}
}

func randomAccount(worker int) store.Account {
	raw := fmt.Sprintf("loadgen; worker-%d; rev-%d", worker, rand.Intn(1000))
	account := store.Account{
		Labels:    labels.Parse(raw),
		RawLabels: raw,
		Type:      store.AccountTypeLocal,
		Login:     fmt.Sprintf("loadgen-user-%d-%s", worker, time.Now().Format("150405.000")),
	}
	if rand.Intn(3) == 0 {
		account.Type = store.AccountTypeLDAP
	} else {
		password := fmt.Sprintf("pw-%d", rand.Int63())
		account.Password = &password
	}
	return account
}

func (al *accountLoop) create() error {
	created, err := al.apiClient.CreateAccount(al.ctx, randomAccount(al.worker))
	if err != nil {
		return err
	}

	al.mu.Lock()
	al.account = *created
	al.present = true
	al.expected = hashAccount(*created)
	al.mu.Unlock()
	return nil
}

func (al *accountLoop) update() error {
	al.mu.Lock()
	defer al.mu.Unlock()

	if !al.present {
		return nil
	}

	next := randomAccount(al.worker)
	next.ID = al.account.ID

	updated, err := al.apiClient.UpsertAccount(al.ctx, next)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	al.account = *updated
	al.expected = hashAccount(*updated)
	return nil
}

func (al *accountLoop) read() error {
	al.mu.Lock()
	id, present, expected := al.account.ID, al.present, al.expected
	al.mu.Unlock()

	account, err := al.apiClient.GetAccount(al.ctx, id)
	if err != nil {
		var apiErr *restapi.APIError
		if !present && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to read account: %w", err)
	}

	if hashAccount(*account) != expected {
		al.logger.Warn("CONSISTENCY ERROR: account content mismatch detected", "id", id)
	}
	return nil
}

func (al *accountLoop) list() error {
	accounts, err := al.apiClient.ListAccounts(al.ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	for _, a := range accounts {
		if a.ID != al.account.ID {
			continue
		}
		if hashAccount(a) != al.expected {
			al.logger.Warn("CONSISTENCY ERROR: account list content mismatch detected", "id", a.ID)
		}
		return nil
	}

	if al.present {
		al.logger.Warn("CONSISTENCY ERROR: account missing from list", "id", al.account.ID)
	}
	return nil
}

func (al *accountLoop) removeAndRecreate() error {
	al.mu.Lock()
	id := al.account.ID
	al.mu.Unlock()

	if err := al.apiClient.RemoveAccount(al.ctx, id); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}

	al.mu.Lock()
	al.present = false
	al.mu.Unlock()

	return al.create()
}
