// Package logging builds the service logger: a console handler, an optional
// size-rotated file and an in-memory ring backing the log endpoints. Every
// sink redacts secrets before writing.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/straja-ai/placeholder/internal/redact"
)

// Options configures New.
type Options struct {
	Level          string
	Format         string // text | json
	File           string // empty disables the file sink
	MaxBytes       int64
	BackupCount    int
	MemoryCapacity int
	Console        io.Writer // defaults to os.Stderr
}

// Logging owns the logger and the sinks behind it.
type Logging struct {
	Logger *slog.Logger
	Memory *MemoryHandler
	file   *RotatingFile
}

// New wires the console, file and memory sinks behind one logger.
func New(opts Options) (*Logging, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceAttr}
	var consoleHandler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		consoleHandler = slog.NewJSONHandler(console, handlerOpts)
	} else {
		consoleHandler = slog.NewTextHandler(console, handlerOpts)
	}

	l := &Logging{Memory: NewMemoryHandler(opts.MemoryCapacity, level)}

	var fileHandler slog.Handler
	if strings.TrimSpace(opts.File) != "" {
		l.file, err = OpenRotatingFile(opts.File, opts.MaxBytes, opts.BackupCount)
		if err != nil {
			return nil, err
		}
		fileHandler = slog.NewTextHandler(l.file, &slog.HandlerOptions{
			Level:       level,
			AddSource:   true,
			ReplaceAttr: replaceAttr,
		})
	}

	l.Logger = slog.New(newFanoutHandler(consoleHandler, fileHandler, l.Memory))
	return l, nil
}

// Close releases the log file.
func (l *Logging) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Discard returns a logger that writes nothing.
func Discard() *slog.Logger {
	return slog.New(NoopHandler{})
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			return slog.String(slog.LevelKey, LevelName(lvl))
		}
	}
	if len(groups) == 0 && a.Key == slog.SourceKey {
		if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
			return slog.String(slog.SourceKey, shortFunction(src.Function)+":"+strconv.Itoa(src.Line))
		}
	}
	return redact.ReplaceAttr(groups, a)
}
