package cli

import (
	"github.com/split73/SaaSoft-test/store"
	"github.com/split73/SaaSoft-test/telemetry"
)

// AppConfig groups common application dependencies to reduce parameter lists
type AppConfig struct {
	AccountStore *store.AccountStore
	Telemetry    *telemetry.Telemetry
}

type CLIOptions struct {
	Theme string
}

// RunCLI starts the terminal UI and blocks until the user quits
func RunCLI(accountStore *store.AccountStore, tel *telemetry.Telemetry, options CLIOptions) error {
	appConfig := &AppConfig{
		AccountStore: accountStore,
		Telemetry:    tel,
	}

	cliApp := NewCLIApp(appConfig, options)
	cliApp.Setup()

	return cliApp.Start()
}
