// Package logger provides the styled console sink used by flow runs.
// It is a slog.Handler that renders one colored line per message, so flow
// output stays scannable by humans and by CI jobs grepping for the failure
// banner.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// LevelSuccess sits between Info and Warn and renders green. Step wrappers
// use it for "completed" messages, mirroring the info/success/warning/error
// palette of the console sink.
const LevelSuccess = slog.Level(2)

var levelColors = map[slog.Level]*color.Color{
	slog.LevelDebug: color.New(color.Faint),
	slog.LevelInfo:  color.New(color.FgBlue),
	LevelSuccess:    color.New(color.FgGreen),
	slog.LevelWarn:  color.New(color.FgYellow),
	slog.LevelError: color.New(color.FgRed),
}

// Options configures a ConsoleHandler.
type Options struct {
	// Level is the minimum level to emit. Defaults to slog.LevelInfo.
	Level slog.Leveler

	// NoColor disables ANSI styling, e.g. when writing to a file.
	NoColor bool
}

// ConsoleHandler is a slog.Handler that writes level-styled lines.
type ConsoleHandler struct {
	opts  Options
	mu    *sync.Mutex
	out   io.Writer
	attrs []slog.Attr
}

// NewHandler returns a ConsoleHandler writing to out.
func NewHandler(out io.Writer, opts *Options) *ConsoleHandler {
	h := &ConsoleHandler{
		mu:  &sync.Mutex{},
		out: out,
	}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	return h
}

// New returns a slog.Logger backed by a ConsoleHandler writing to out.
func New(out io.Writer, opts *Options) *slog.Logger {
	return slog.New(NewHandler(out, opts))
}

// Default returns a logger writing styled lines to stdout at Info level.
func Default() *slog.Logger {
	return New(os.Stdout, nil)
}

// Discard returns a logger that emits nothing. Used when a run has logging
// suppressed.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Success logs msg at LevelSuccess.
func Success(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelSuccess, msg, args...)
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)

	appendAttr := func(a slog.Attr) bool {
		if a.Key == "" {
			return true
		}
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(appendAttr)

	line := b.String()
	if c, ok := levelColors[r.Level]; ok && !h.opts.NoColor {
		line = c.Sprint(line)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.out, line)
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	// Output is flat console lines, grouping adds nothing here.
	return h
}
