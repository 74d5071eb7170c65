package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/rivo/tview"
	"github.com/split73/SaaSoft-test/constants"
	"github.com/split73/SaaSoft-test/labels"
	"github.com/split73/SaaSoft-test/store"
	"github.com/split73/SaaSoft-test/telemetry"
)

const (
	pageMain    = "main"
	pageForm    = "form"
	pageConfirm = "confirm"
)

var accountColumns = []string{"Labels", "Type", "Login", "Password"}

// accountTypeOptions is the dropdown order in the account form
var accountTypeOptions = []string{string(store.AccountTypeLocal), string(store.AccountTypeLDAP)}

type CLIApp struct {
	app          *tview.Application
	pages        *tview.Pages
	accountsView *tview.Table
	statsView    *tview.TextView
	statusView   *tview.TextView
	logView      *tview.TextView

	accountStore *store.AccountStore
	telemetry    *telemetry.Telemetry
	logger       *slog.Logger
	options      CLIOptions
	theme        Theme

	// ids of the rows currently shown, in table order (row 0 is the header)
	rowIDs []string

	ctx    context.Context
	cancel context.CancelFunc
}

func NewCLIApp(appConfig *AppConfig, options CLIOptions) *CLIApp {
	ctx, cancel := context.WithCancel(context.Background())

	return &CLIApp{
		app:          tview.NewApplication(),
		accountStore: appConfig.AccountStore,
		telemetry:    appConfig.Telemetry,
		logger:       appConfig.Telemetry.GetLogger(),
		options:      options,
		theme:        GetTheme(options.Theme),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (c *CLIApp) Setup() {
	ApplyTheme(c.theme)

	c.accountsView = tview.NewTable()
	c.accountsView.SetBorder(true)
	c.accountsView.SetTitle(" Accounts [a]dd [enter] edit [d]elete [s]ave [q]uit ")
	c.accountsView.SetTitleAlign(tview.AlignLeft)
	c.accountsView.SetSelectable(true, false)
	c.accountsView.SetFixed(1, 0)
	ApplyThemeToTable(c.accountsView, c.theme)
	c.accountsView.SetSelectedFunc(func(row, _ int) {
		if id, ok := c.idAtRow(row); ok {
			c.showAccountForm(id)
		}
	})

	c.statsView = tview.NewTextView()
	c.statsView.SetBorder(true)
	c.statsView.SetTitle(" Stats ")
	c.statsView.SetTitleAlign(tview.AlignLeft)
	c.statsView.SetDynamicColors(true)
	ApplyThemeToTextView(c.statsView, c.theme)

	c.statusView = tview.NewTextView()
	c.statusView.SetDynamicColors(true)
	ApplyThemeToTextView(c.statusView, c.theme)

	c.logView = tview.NewTextView()
	c.logView.SetBorder(true)
	c.logView.SetTitle(" Logs ")
	c.logView.SetTitleAlign(tview.AlignLeft)
	c.logView.SetDynamicColors(true)
	c.logView.SetScrollable(true)
	c.logView.SetMaxLines(constants.DefaultLogBufferSize)
	ApplyThemeToTextView(c.logView, c.theme)

	topRow := tview.NewFlex()
	topRow.SetDirection(tview.FlexColumn)
	topRow.AddItem(c.accountsView, 0, 3, true)
	topRow.AddItem(c.statsView, 30, 0, false)

	mainFlex := tview.NewFlex()
	mainFlex.SetDirection(tview.FlexRow)
	mainFlex.AddItem(topRow, 0, 2, true)
	mainFlex.AddItem(c.statusView, 1, 0, false)
	mainFlex.AddItem(c.logView, 0, 1, false)

	c.pages = tview.NewPages()
	c.pages.AddPage(pageMain, mainFlex, true, true)

	c.app.SetRoot(c.pages, true)
	c.app.EnableMouse(true)

	c.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			c.Stop()
			return nil
		}

		if front, _ := c.pages.GetFrontPage(); front != pageMain {
			if event.Key() == tcell.KeyEscape {
				c.closeOverlay()
				return nil
			}
			return event
		}

		switch event.Rune() {
		case 'q', 'Q':
			c.Stop()
			return nil
		case 'a', 'A':
			c.showAccountForm("")
			return nil
		case 'd', 'D':
			row, _ := c.accountsView.GetSelection()
			if id, ok := c.idAtRow(row); ok {
				c.confirmRemove(id)
			}
			return nil
		case 's', 'S':
			c.save()
			return nil
		}
		return event
	})

	c.telemetry.LogCapture.SetLogCallback(func(entry telemetry.LogEntry) {
		c.appendLog(FormatLogEntryWithTheme(entry))
	})
}

func (c *CLIApp) Start() error {
	go c.refreshLoop()

	go func() {
		c.loadExistingLogs()
	}()

	c.renderAccounts()
	c.renderStats()

	return c.app.Run()
}

func (c *CLIApp) Stop() {
	c.cancel()
	c.telemetry.LogCapture.SetLogCallback(nil)
	c.app.Stop()
}

func (c *CLIApp) refreshLoop() {
	ticker := time.NewTicker(constants.CLIRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.app.QueueUpdateDraw(func() {
				c.renderAccounts()
				c.renderStats()
			})
		}
	}
}

func (c *CLIApp) renderStats() {
	stats := c.telemetry.GetStatsCollector().CollectStats()
	c.statsView.SetText(FormatStatsWithTheme(stats, c.theme))
}

// renderAccounts redraws the table from a snapshot, keeping the selected row
func (c *CLIApp) renderAccounts() {
	selected, _ := c.accountsView.GetSelection()
	accounts := c.accountStore.Snapshot()

	c.accountsView.Clear()
	for col, title := range accountColumns {
		c.accountsView.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(c.theme.Title).
			SetSelectable(false).
			SetExpansion(1))
	}

	c.rowIDs = c.rowIDs[:0]
	for i, account := range accounts {
		for col, text := range accountRow(account) {
			c.accountsView.SetCell(i+1, col, tview.NewTableCell(text).
				SetTextColor(c.theme.Foreground).
				SetExpansion(1))
		}
		c.rowIDs = append(c.rowIDs, account.ID)
	}

	if len(accounts) == 0 {
		c.accountsView.SetCell(1, 0, tview.NewTableCell("No accounts yet, press 'a' to add one").
			SetTextColor(c.theme.Secondary).
			SetSelectable(false))
		return
	}

	if selected < 1 {
		selected = 1
	}
	if selected > len(accounts) {
		selected = len(accounts)
	}
	c.accountsView.Select(selected, 0)
}

func (c *CLIApp) idAtRow(row int) (string, bool) {
	if row < 1 || row > len(c.rowIDs) {
		return "", false
	}
	return c.rowIDs[row-1], true
}

// showAccountForm opens the editor for id, or an empty one for a new account
func (c *CLIApp) showAccountForm(id string) {
	account, exists := c.accountStore.Get(id)
	if !exists {
		account = store.Account{ID: uuid.NewString(), Type: store.AccountTypeLocal, Password: new(string)}
	}

	rawLabels := account.RawLabels
	if rawLabels == "" && len(account.Labels) > 0 {
		rawLabels = labels.Format(account.Labels)
	}

	password := ""
	if account.Password != nil {
		password = *account.Password
	}

	typeIndex := 0
	for i, option := range accountTypeOptions {
		if option == string(account.Type) {
			typeIndex = i
		}
	}

	form := tview.NewForm()
	form.AddInputField("Labels", rawLabels, 50, nil, nil)
	var passwordField *tview.InputField
	form.AddDropDown("Type", accountTypeOptions, typeIndex, func(option string, _ int) {
		// called once before the password field exists
		if passwordField != nil {
			passwordField.SetDisabled(option == string(store.AccountTypeLDAP))
		}
	})
	form.AddInputField("Login", account.Login, 50, nil, nil)
	form.AddPasswordField("Password", password, 50, '*', nil)
	passwordField = form.GetFormItemByLabel("Password").(*tview.InputField)
	passwordField.SetDisabled(account.Type == store.AccountTypeLDAP)
	form.AddButton("Save", func() {
		_, typeOption := form.GetFormItemByLabel("Type").(*tview.DropDown).GetCurrentOption()
		updated, err := buildAccount(
			account.ID,
			form.GetFormItemByLabel("Labels").(*tview.InputField).GetText(),
			typeOption,
			form.GetFormItemByLabel("Login").(*tview.InputField).GetText(),
			form.GetFormItemByLabel("Password").(*tview.InputField).GetText(),
		)
		if err != nil {
			c.setStatus(err.Error(), true)
			return
		}
		c.upsert(updated)
		c.closeOverlay()
	})
	form.AddButton("Cancel", c.closeOverlay)

	title := " New account "
	if exists {
		title = " Edit account "
	}
	form.SetBorder(true)
	form.SetTitle(title)
	form.SetTitleAlign(tview.AlignLeft)
	ApplyThemeToForm(form, c.theme)

	c.pages.AddPage(pageForm, centered(form, 70, 13), true, true)
	c.app.SetFocus(form)
}

func (c *CLIApp) confirmRemove(id string) {
	account, ok := c.accountStore.Get(id)
	if !ok {
		return
	}

	modal := tview.NewModal()
	modal.SetText(fmt.Sprintf("Delete account %q?", account.Login))
	modal.AddButtons([]string{"Delete", "Cancel"})
	modal.SetDoneFunc(func(_ int, label string) {
		if label == "Delete" {
			c.remove(id)
		}
		c.closeOverlay()
	})

	c.pages.AddPage(pageConfirm, modal, true, true)
	c.app.SetFocus(modal)
}

func (c *CLIApp) closeOverlay() {
	c.pages.RemovePage(pageForm)
	c.pages.RemovePage(pageConfirm)
	c.pages.SwitchToPage(pageMain)
	c.app.SetFocus(c.accountsView)
	c.renderAccounts()
	c.renderStats()
}

func (c *CLIApp) upsert(account store.Account) {
	if err := c.accountStore.Upsert(c.ctx, account); err != nil {
		c.logger.Error("Failed to persist account", "id", account.ID, "error", err)
		c.setStatus("Could not persist accounts: "+err.Error(), true)
		return
	}
	c.logger.Info("Account saved", "id", account.ID, "login", account.Login)
	c.setStatus("Saved "+account.Login, false)
}

func (c *CLIApp) remove(id string) {
	if err := c.accountStore.Remove(c.ctx, id); err != nil {
		c.logger.Error("Failed to persist accounts after removal", "id", id, "error", err)
		c.setStatus("Could not persist accounts: "+err.Error(), true)
		return
	}
	c.logger.Info("Account removed", "id", id)
	c.setStatus("Removed account", false)
}

func (c *CLIApp) save() {
	if err := c.accountStore.Save(c.ctx); err != nil {
		c.logger.Error("Failed to save accounts", "error", err)
		c.setStatus("Could not persist accounts: "+err.Error(), true)
		return
	}
	c.setStatus(fmt.Sprintf("Saved %d accounts", c.accountStore.Len()), false)
}

func (c *CLIApp) setStatus(message string, isError bool) {
	color := "[green]"
	if isError {
		color = "[red]"
	}
	c.statusView.SetText(color + tview.Escape(message) + "[-]")
}

func (c *CLIApp) appendLog(message string) {
	c.app.QueueUpdateDraw(func() {
		fmt.Fprint(c.logView, message)
		c.logView.ScrollToEnd()
	})
}

func (c *CLIApp) loadExistingLogs() {
	logs := c.telemetry.LogCapture.GetRecentLogs(constants.DefaultLogBufferSize)
	if len(logs) == 0 {
		c.appendLog(c.theme.tags().secondary + "Waiting for logs...[-]\n")
		return
	}

	var logText strings.Builder
	for _, entry := range logs {
		logText.WriteString(FormatLogEntryWithTheme(entry))
	}

	c.app.QueueUpdateDraw(func() {
		c.logView.SetText(logText.String())
		c.logView.ScrollToEnd()
	})
}

// buildAccount turns form input into an account. LDAP accounts never carry a
// password, matching how the form hides the field for them.
func buildAccount(id, rawLabels, accountType, login, password string) (store.Account, error) {
	t, err := store.ParseAccountType(accountType)
	if err != nil {
		return store.Account{}, err
	}

	account := store.Account{
		ID:        id,
		Labels:    labels.Parse(rawLabels),
		RawLabels: rawLabels,
		Type:      t,
		Login:     login,
	}
	if t == store.AccountTypeLocal {
		account.Password = &password
	}
	return account, nil
}

func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}
