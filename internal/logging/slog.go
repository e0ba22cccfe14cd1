package logging

import (
	ctx "context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// SlogManager owns the process logger. Before Setup it hands out
// slog.Default.
type SlogManager struct {
	logger  *slog.Logger
	level   slog.LevelVar
	closers []io.Closer
}

func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel accepts slog level names in any case plus "warning".
// Anything unrecognized is info.
func parseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// utcTime renders record times as RFC3339 in UTC so logs from the playa and
// from home sort together.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Setup routes records to file (stdout when nil) as text and to remote, if
// given, as JSON. A remote that is an io.Closer is closed by Close. context
// adds attributes to every record.
func (m *SlogManager) Setup(file io.Writer, level string, remote io.Writer, context ContextProvider) {
	m.level.Set(parseLevel(level))
	opts := &slog.HandlerOptions{Level: &m.level, ReplaceAttr: utcTime}

	if file == nil {
		file = os.Stdout
	}
	handlers := []slog.Handler{slog.NewTextHandler(file, opts)}
	if remote != nil {
		handlers = append(handlers, slog.NewJSONHandler(remote, opts))
		if c, ok := remote.(io.Closer); ok {
			m.closers = append(m.closers, c)
		}
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if context != nil {
		h = NewContextHandler(h, context)
	}
	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", m.level.Level().String())
}

// SetLevel changes the level of an already configured logger.
func (m *SlogManager) SetLevel(level string) {
	m.level.Set(parseLevel(level))
}

func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Component returns the logger tagged with a component attribute.
func (m *SlogManager) Component(name string) *slog.Logger {
	return m.Logger().With("component", name)
}

// Close releases remote sinks.
func (m *SlogManager) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	m.closers = nil
	return errors.Join(errs...)
}

// WriteLog logs data tagged with the calling function, e.g.
// WriteLog("importer:Run", "Manifest unavailable", "ERROR"). It is a no-op
// before Setup.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}
	m.logger.Log(ctx.Background(), parseLevel(level), data, "function", functionName)
}
