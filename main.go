package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/split73/SaaSoft-test/cli"
	"github.com/split73/SaaSoft-test/constants"
	"github.com/split73/SaaSoft-test/restapi"
	"github.com/split73/SaaSoft-test/store"
	"github.com/split73/SaaSoft-test/telemetry"
)

// Config holds all configuration parameters for running the application
type Config struct {
	// CLI configuration
	CLIMode bool   `env:"ACCOUNTS_CLI"`
	Theme   string `env:"ACCOUNTS_THEME" envDefault:"dark"`
	Port    string `env:"ACCOUNTS_PORT" envDefault:"8080"`

	// Storage configuration
	Storage    string `env:"ACCOUNTS_STORAGE" envDefault:"sqlite"`
	DataDir    string `env:"ACCOUNTS_DATA_DIR"`
	StorageKey string `env:"ACCOUNTS_STORAGE_KEY" envDefault:"accounts-store"`

	LogLevel string `env:"ACCOUNTS_LOG_LEVEL" envDefault:"debug"`

	// Load generator configuration
	EnableLoadGen  bool `env:"ACCOUNTS_LOADGEN"`
	AccountCount   int  `env:"ACCOUNTS_LOADGEN_CONCURRENCY" envDefault:"5"`
	RequestsPerMin int  `env:"ACCOUNTS_LOADGEN_RPM" envDefault:"60"`
}

// loadConfig reads environment defaults and lets command-line flags override them
func loadConfig(args []string) (Config, error) {
	var config Config
	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("accounts", flag.ContinueOnError)
	fs.BoolVar(&config.CLIMode, "cli", config.CLIMode, "Run in CLI mode with TUI")
	fs.StringVar(&config.Theme, "theme", config.Theme, "Theme for CLI mode (dark or light)")
	fs.StringVar(&config.Port, "port", config.Port, "Port to run the HTTP server on")
	fs.StringVar(&config.Storage, "storage", config.Storage, "Local storage backend (sqlite, memory or none)")
	fs.StringVar(&config.DataDir, "data-dir", config.DataDir, "Directory holding .data/ (defaults to the working directory)")
	fs.StringVar(&config.StorageKey, "storage-key", config.StorageKey, "Local storage key the accounts are kept under")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level (debug, info, warn, error)")

	fs.BoolVar(&config.EnableLoadGen, "gen", config.EnableLoadGen, "Enable load generator")
	fs.IntVar(&config.AccountCount, "concurrency", config.AccountCount, "Number of accounts for load generator")
	fs.IntVar(&config.RequestsPerMin, "rpm", config.RequestsPerMin, "Requests per minute for load generator")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	switch config.Storage {
	case constants.StorageSQLite, constants.StorageMemory, constants.StorageNone:
	default:
		return Config{}, fmt.Errorf("unknown storage backend %q", config.Storage)
	}

	return config, nil
}

func main() {
	config, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if err := Run(config); err != nil {
		log.Fatal(err)
	}
}

// checkPortAvailable checks if the given port is available for binding
func checkPortAvailable(port string) error {
	listener, err := net.Listen("tcp", port)
	if err != nil {
		return fmt.Errorf("port %s is not available: %w", port, err)
	}
	listener.Close()
	return nil
}

// checkServerHealth validates that the server is ready by calling /healthz
func checkServerHealth(port string) error {
	client := &http.Client{Timeout: constants.HealthCheckTimeout}
	url := fmt.Sprintf("http://localhost%s/healthz", port)

	for i := 0; i < constants.MaxHealthCheckRetries; i++ {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(constants.HealthCheckRetryInterval)
	}

	return fmt.Errorf("server health check failed after retries")
}

// ApplicationComponents holds the initialized components needed to run the application
type ApplicationComponents struct {
	Storage      store.LocalStorage
	AccountStore *store.AccountStore
	Telemetry    *telemetry.Telemetry
	HTTPServer   *http.Server
	Simulator    *Simulator
}

// Close releases the storage, if it holds resources
func (c *ApplicationComponents) Close() error {
	c.Telemetry.Stop()
	if closer, ok := c.Storage.(store.Store); ok {
		return closer.Close()
	}
	return nil
}

// openStorage resolves the configured local storage capability
func openStorage(config Config) (store.LocalStorage, error) {
	switch config.Storage {
	case constants.StorageMemory:
		return store.NewMemoryStorage(), nil
	case constants.StorageNone:
		return store.UnavailableStorage(), nil
	default:
		opts := store.DefaultStoreOptions(constants.DefaultDatabaseName)
		opts.BasePath = config.DataDir
		storage, err := store.NewSQLiteStorage(opts)
		if err != nil {
			return nil, fmt.Errorf("could not create local storage: %w", err)
		}
		return storage, nil
	}
}

// setupTelemetry creates and starts the telemetry system
func setupTelemetry(config Config) *telemetry.Telemetry {
	tel := telemetry.New(
		telemetry.WithCLIMode(config.CLIMode),
		telemetry.WithLogLevel(config.LogLevel),
	)
	tel.SetupLogging()
	tel.Start()
	return tel
}

// createSimulator creates a load generator simulator if enabled
func createSimulator(config Config, logger *slog.Logger, port string) *Simulator {
	if !config.EnableLoadGen {
		return nil
	}

	return NewSimulator(logger, SimulatorOptions{
		AccountCount:   config.AccountCount,
		RequestsPerMin: config.RequestsPerMin,
		ServerPort:     port,
	})
}

// preparePort ensures the port has the correct format and checks availability
func preparePort(port string) (string, error) {
	if port == "" {
		port = constants.DefaultPort
	}
	if port[0] != ':' {
		port = ":" + port
	}

	if err := checkPortAvailable(port); err != nil {
		return "", err
	}

	return port, nil
}

// initializeApplication sets up all application components
func initializeApplication(ctx context.Context, config Config) (*ApplicationComponents, error) {
	port, err := preparePort(config.Port)
	if err != nil {
		return nil, err
	}

	tel := setupTelemetry(config)
	logger := tel.GetLogger()

	storage, err := openStorage(config)
	if err != nil {
		tel.Stop()
		return nil, err
	}
	if store.IsUnavailable(storage) {
		logger.Warn("Local storage disabled, accounts will not survive a restart")
	}

	accountStore := store.NewAccountStore(ctx, storage,
		store.WithStorageKey(config.StorageKey),
		store.WithLogger(logger),
		store.WithWriteHook(tel.GetStatsCollector().TrackStoreWrite),
	)
	tel.GetStatsCollector().SetAccountCounter(accountStore.Len)
	logger.Info("Account store ready", "storage", config.Storage, "accounts", accountStore.Len())

	return &ApplicationComponents{
		Storage:      storage,
		AccountStore: accountStore,
		Telemetry:    tel,
		HTTPServer:   createHTTPServer(accountStore, storage, tel, port),
		Simulator:    createSimulator(config, logger, port),
	}, nil
}

func Run(config Config) error {
	components, err := initializeApplication(context.Background(), config)
	if err != nil {
		return err
	}
	defer components.Close()

	if config.CLIMode {
		options := cli.CLIOptions{
			Theme: config.Theme,
		}
		return runWithCLI(components, options)
	}

	return runHTTPServer(components.HTTPServer, components.Simulator)
}

func runWithCLI(components *ApplicationComponents, options cli.CLIOptions) error {
	httpServer := components.HTTPServer
	simulator := components.Simulator

	serverError := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverError <- err
		}
	}()

	if err := checkServerHealth(httpServer.Addr); err != nil {
		return fmt.Errorf("server failed health check: %w", err)
	}

	if simulator != nil {
		go func() {
			if err := simulator.Start(); err != nil {
				slog.Error("Load generator failed to start", "error", err)
			}
		}()
	}

	cliError := make(chan error, 1)
	go func() {
		cliError <- cli.RunCLI(components.AccountStore, components.Telemetry, options)
	}()

	select {
	case err := <-serverError:
		return fmt.Errorf("server failed: %w", err)
	case err := <-cliError:
		if simulator != nil {
			simulator.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
		defer cancel()

		if shutdownErr := httpServer.Shutdown(ctx); shutdownErr != nil {
			return fmt.Errorf("server shutdown failed: %w", shutdownErr)
		}

		return err
	}
}

func runHTTPServer(httpServer *http.Server, simulator *Simulator) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	stopError := make(chan error, 1)
	go func() {
		<-stop
		if simulator != nil {
			simulator.Stop()
		}
		stopError <- nil
	}()

	return runServer(httpServer, stopError, simulator)
}

func runServer(httpServer *http.Server, shutdownTrigger <-chan error, simulator *Simulator) error {
	serverError := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverError <- err
		}
	}()

	if simulator != nil {
		go func() {
			time.Sleep(constants.LoadGenStartupDelay)
			if err := simulator.Start(); err != nil {
				slog.Error("Load generator failed to start", "error", err)
			}
		}()
	}

	select {
	case err := <-serverError:
		return fmt.Errorf("server failed to start: %w", err)
	case err := <-shutdownTrigger:
		slog.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
		defer cancel()

		if shutdownErr := httpServer.Shutdown(ctx); shutdownErr != nil {
			return fmt.Errorf("server shutdown failed: %w", shutdownErr)
		}

		return err
	}
}

func createHTTPServer(accountStore *store.AccountStore, storage store.LocalStorage, tel *telemetry.Telemetry, port string) *http.Server {
	server := restapi.NewServer(
		restapi.WithAccountStore(accountStore),
		restapi.WithStorage(storage),
		restapi.WithTelemetry(tel),
	)

	return &http.Server{
		Addr:    port,
		Handler: server.Handler(),
	}
}
