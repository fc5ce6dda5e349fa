package helper

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"strings"

	"github.com/fatih/color"
)

// PrettyHandlerOptions configures a PrettyHandler.
type PrettyHandlerOptions struct {
	SlogOpts slog.HandlerOptions
}

// PrettyHandler is a slog.Handler writing one colored line per record:
// timestamp, level, message and the attributes as indented JSON.
type PrettyHandler struct {
	slog.Handler
	l *log.Logger
}

// NewPrettyHandler creates a PrettyHandler writing to out.
func NewPrettyHandler(out io.Writer, opts PrettyHandlerOptions) *PrettyHandler {
	return &PrettyHandler{
		Handler: slog.NewJSONHandler(out, &opts.SlogOpts),
		l:       log.New(out, "", 0),
	}
}

// Handle formats and writes the record.
func (h *PrettyHandler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	}

	fields := make(map[string]interface{}, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})

	b, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return err
	}

	timeStr := r.Time.Format("[15:04:05.000]")
	msg := color.CyanString(r.Message)

	h.l.Println(timeStr, level, msg, color.WhiteString(string(b)))

	return nil
}

// NewLogger returns a slog.Logger backed by a PrettyHandler at the given level.
func NewLogger(out io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewPrettyHandler(out, PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: level},
	}))
}

// ParseLogLevel maps a level name (DEBUG, INFO, WARN, WARNING, ERROR) to a slog.Level.
// Unknown names fall back to INFO.
func ParseLogLevel(name string) slog.Level {
	var level slog.Level
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
