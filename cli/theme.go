package cli

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/split73/SaaSoft-test/store"
	"github.com/split73/SaaSoft-test/telemetry"
)

type Theme struct {
	Name       string
	Foreground tcell.Color
	Border     tcell.Color
	Title      tcell.Color
	Highlight  tcell.Color
	Secondary  tcell.Color
	Accent     tcell.Color
	Success    tcell.Color
	Warning    tcell.Color
	Error      tcell.Color
}

var (
	DarkTheme = Theme{
		Name:       "dark",
		Foreground: tcell.ColorWhite,
		Border:     tcell.ColorBlue,
		Title:      tcell.ColorYellow,
		Highlight:  tcell.ColorGreen,
		Secondary:  tcell.ColorGray,
		Accent:     tcell.ColorAqua,
		Success:    tcell.ColorGreen,
		Warning:    tcell.ColorYellow,
		Error:      tcell.ColorRed,
	}

	LightTheme = Theme{
		Name:       "light",
		Foreground: tcell.ColorBlack,
		Border:     tcell.ColorNavy,
		Title:      tcell.ColorDarkBlue,
		Highlight:  tcell.ColorDarkGreen,
		Secondary:  tcell.ColorDarkGray,
		Accent:     tcell.ColorTeal,
		Success:    tcell.ColorDarkGreen,
		Warning:    tcell.ColorOrange,
		Error:      tcell.ColorDarkRed,
	}
)

func GetTheme(themeName string) Theme {
	switch themeName {
	case "light":
		return LightTheme
	default:
		return DarkTheme
	}
}

// tag color names used inside tview dynamic-color strings
type tagColors struct {
	label     string
	value     string
	secondary string
	header    string
}

func (t Theme) tags() tagColors {
	if t.Name == "light" {
		return tagColors{label: "[navy]", value: "[teal]", secondary: "[darkgray]", header: "[navy]"}
	}
	return tagColors{label: "[white]", value: "[aqua]", secondary: "[gray]", header: "[yellow]"}
}

func ApplyTheme(theme Theme) {
	tview.Styles = tview.Theme{
		PrimitiveBackgroundColor:    tcell.ColorDefault,
		ContrastBackgroundColor:     tcell.ColorDefault,
		MoreContrastBackgroundColor: tcell.ColorDefault,
		BorderColor:                 theme.Border,
		TitleColor:                  theme.Title,
		GraphicsColor:               theme.Accent,
		PrimaryTextColor:            theme.Foreground,
		SecondaryTextColor:          theme.Secondary,
		TertiaryTextColor:           theme.Secondary,
		InverseTextColor:            theme.Foreground,
		ContrastSecondaryTextColor:  theme.Foreground,
	}
}

func ApplyThemeToTextView(tv *tview.TextView, theme Theme) {
	tv.SetBackgroundColor(tcell.ColorDefault)
	tv.SetTextColor(theme.Foreground)
	tv.SetBorderColor(theme.Border)
	tv.SetTitleColor(theme.Title)
}

func ApplyThemeToTable(table *tview.Table, theme Theme) {
	table.SetBackgroundColor(tcell.ColorDefault)
	table.SetBorderColor(theme.Border)
	table.SetTitleColor(theme.Title)
	table.SetSelectedStyle(tcell.StyleDefault.Foreground(theme.Highlight).Reverse(true))
}

func ApplyThemeToForm(form *tview.Form, theme Theme) {
	form.SetBackgroundColor(tcell.ColorDefault)
	form.SetBorderColor(theme.Border)
	form.SetTitleColor(theme.Title)
	form.SetLabelColor(theme.Foreground)
	form.SetFieldTextColor(theme.Accent)
	form.SetButtonTextColor(theme.Foreground)
}

const statsTemplate = `{{.LabelColor}}Accounts:{{.ValueColor}} {{.AccountCount}}{{.LabelColor}}
Upserts:{{.ValueColor}} {{.Upserts}}{{.LabelColor}}
Removes:{{.ValueColor}} {{.Removes}}{{.LabelColor}}
Saves:{{.ValueColor}} {{.Saves}}{{.LabelColor}}
HTTP Requests:{{.ValueColor}} {{.TotalRequests}}{{.LabelColor}}
Rate:{{.ValueColor}} {{.RequestsPerSec}}/sec{{.LabelColor}}
Uptime:{{.ValueColor}} {{.Uptime}}{{.LabelColor}}
Memory:{{.ValueColor}} {{.MemoryUsage}}{{.LabelColor}}
Updated:{{.SecondaryColor}} {{.LastUpdated}}[-]`

type StatsData struct {
	AccountCount   int
	Upserts        int64
	Removes        int64
	Saves          int64
	TotalRequests  int64
	RequestsPerSec int64
	Uptime         string
	MemoryUsage    string
	LastUpdated    string
	LabelColor     string
	ValueColor     string
	SecondaryColor string
}

var statsTemplateParsed = template.Must(template.New("stats").Parse(statsTemplate))

func FormatStatsWithTheme(stats telemetry.Stats, theme Theme) string {
	tags := theme.tags()

	data := StatsData{
		AccountCount:   stats.AccountCount,
		Upserts:        stats.Upserts,
		Removes:        stats.Removes,
		Saves:          stats.Saves,
		TotalRequests:  stats.TotalRequests,
		RequestsPerSec: stats.RequestsPerSec,
		Uptime:         formatDuration(stats.Uptime),
		MemoryUsage:    stats.MemoryUsage,
		LastUpdated:    stats.LastUpdated.Format(time.TimeOnly),
		LabelColor:     tags.label,
		ValueColor:     tags.value,
		SecondaryColor: tags.secondary,
	}

	var buf bytes.Buffer
	if err := statsTemplateParsed.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting stats: %v", err)
	}

	return buf.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// maskPassword hides the password; LDAP accounts carry none
func maskPassword(p *string) string {
	if p == nil {
		return "-"
	}
	if *p == "" {
		return ""
	}
	return strings.Repeat("•", 8)
}

// accountRow returns the table cells for one account
func accountRow(a store.Account) []string {
	texts := make([]string, 0, len(a.Labels))
	for _, l := range a.Labels {
		texts = append(texts, l.Text)
	}
	return []string{
		tview.Escape(strings.Join(texts, ", ")),
		string(a.Type),
		tview.Escape(a.Login),
		maskPassword(a.Password),
	}
}

func FormatLogEntryWithTheme(entry telemetry.LogEntry) string {
	// tint already emits ANSI colors and timestamps
	return tview.TranslateANSI(entry.Message)
}
