// Package logging builds the process logger: log/slog on top of a
// charmbracelet/log handler with lipgloss level styles.
package logging

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/warp/pocket-ledger/config"
)

var (
	infoColor  = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warnColor  = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	errorColor = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}
	debugColor = lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}
)

// New returns a slog.Logger writing to w as configured by cfg.
// It does not touch slog.Default; cmd/server decides that.
func New(w io.Writer, cfg config.Log) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	formatter := log.TextFormatter
	if cfg.Format == "json" {
		formatter = log.JSONFormatter
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		// charmbracelet levels share slog's numeric values.
		Level:     log.Level(level),
		Prefix:    cfg.Prefix,
		Formatter: formatter,
	})
	handler.SetStyles(styles())
	return slog.New(handler), nil
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	for level, c := range map[log.Level]struct {
		label string
		color lipgloss.AdaptiveColor
	}{
		log.DebugLevel: {"DEBU", debugColor},
		log.InfoLevel:  {"INFO", infoColor},
		log.WarnLevel:  {"WARN", warnColor},
		log.ErrorLevel: {"ERRO", errorColor},
	} {
		s.Levels[level] = lipgloss.NewStyle().
			SetString(c.label).
			Bold(true).
			Padding(0, 1).
			Foreground(c.color)
	}

	s.Keys["err"] = lipgloss.NewStyle().Foreground(errorColor)
	s.Values["err"] = lipgloss.NewStyle().Bold(true)
	s.Keys["user"] = lipgloss.NewStyle().Foreground(infoColor)
	s.Keys["request_id"] = lipgloss.NewStyle().Foreground(debugColor)
	return s
}
