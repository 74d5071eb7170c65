package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/split73/SaaSoft-test/constants"
	"github.com/split73/SaaSoft-test/labels"
	"github.com/split73/SaaSoft-test/store"
	"github.com/split73/SaaSoft-test/telemetry"
)

type Server struct {
	accountStore *store.AccountStore
	storage      store.LocalStorage
	telemetry    *telemetry.Telemetry
	logger       *slog.Logger
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// AccountRequest is the body accepted by the account write endpoints.
// Labels is optional; when omitted it is parsed from RawLabels.
type AccountRequest struct {
	ID        string               `json:"id"`
	Labels    []store.AccountLabel `json:"labels"`
	RawLabels string               `json:"rawLabels"`
	Type      store.AccountType    `json:"type"`
	Login     string               `json:"login"`
	Password  *string              `json:"password"`
}

func (r AccountRequest) toAccount() store.Account {
	account := store.Account{
		ID:        r.ID,
		Labels:    r.Labels,
		RawLabels: r.RawLabels,
		Type:      r.Type,
		Login:     r.Login,
		Password:  r.Password,
	}
	if account.Labels == nil {
		account.Labels = labels.Parse(r.RawLabels)
	}
	return account
}

// ServerOption defines a functional option for configuring Server
type ServerOption func(*Server)

// WithAccountStore configures the account store for the server
func WithAccountStore(accountStore *store.AccountStore) ServerOption {
	return func(s *Server) {
		s.accountStore = accountStore
	}
}

// WithStorage exposes the backing storage to the health check
func WithStorage(storage store.LocalStorage) ServerOption {
	return func(s *Server) {
		s.storage = storage
	}
}

// WithTelemetry configures the telemetry instance for the server
func WithTelemetry(tel *telemetry.Telemetry) ServerOption {
	return func(s *Server) {
		s.telemetry = tel
	}
}

// NewServer creates a new server with functional options. Telemetry is required.
func NewServer(options ...ServerOption) *Server {
	s := &Server{}
	for _, option := range options {
		option(s)
	}
	s.logger = s.telemetry.GetLogger()
	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthCheck)

	mux.HandleFunc("GET /accounts", s.handleListAccounts)
	mux.HandleFunc("POST /accounts", s.handleCreateAccount)
	mux.HandleFunc("POST /accounts/save", s.handleSave)
	mux.HandleFunc("GET /accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("PUT /accounts/{id}", s.handleUpsertAccount)
	mux.HandleFunc("DELETE /accounts/{id}", s.handleRemoveAccount)
}

// Handler returns the routed mux wrapped in the logging middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return s.LoggingMiddleware(mux)
}

// responseWriter captures the status code for metrics
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		s.telemetry.GetStatsCollector().IncrementRequest()

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", duration,
			"status", rw.status,
		)
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), constants.RequestTimeout)
	defer cancel()

	if checker, ok := s.storage.(store.HealthChecker); ok {
		if err := checker.HealthCheck(ctx); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, "Local storage unavailable")
			return
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.accountStore.Snapshot())
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := s.accountStore.Get(r.PathValue("id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "Account not found")
		return
	}
	s.writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAccount(w, r)
	if !ok {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	account := req.toAccount()
	if err := s.accountStore.Upsert(r.Context(), account); err != nil {
		s.logger.Error("Failed to persist account", "id", account.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to persist accounts")
		return
	}

	s.writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleUpsertAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAccount(w, r)
	if !ok {
		return
	}
	req.ID = r.PathValue("id")

	account := req.toAccount()
	if err := s.accountStore.Upsert(r.Context(), account); err != nil {
		s.logger.Error("Failed to persist account", "id", account.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to persist accounts")
		return
	}

	s.writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.accountStore.Remove(r.Context(), id); err != nil {
		s.logger.Error("Failed to persist accounts after removal", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to persist accounts")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.accountStore.Save(r.Context()); err != nil {
		s.logger.Error("Failed to save accounts", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to persist accounts")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeAccount reads the request body and writes a 400 on failure
func (s *Server) decodeAccount(w http.ResponseWriter, r *http.Request) (AccountRequest, bool) {
	var req AccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return req, false
	}
	if err := validateType(req.Type); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func validateType(t store.AccountType) error {
	if t == "" {
		return errors.New("account type is required")
	}
	if !t.Valid() {
		return fmt.Errorf("unknown account type %q", t)
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON", "error", err)
	}
}
