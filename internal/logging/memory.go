package logging

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/straja-ai/placeholder/internal/redact"
)

// Entry is one record kept by the in-memory ring.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Module    string `json:"module"`
	Function  string `json:"function"`
	Line      int    `json:"line"`
}

type memoryStore struct {
	mu       sync.Mutex
	capacity int
	buffer   []Entry
	start    int
}

func (s *memoryStore) append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buffer) < s.capacity {
		s.buffer = append(s.buffer, e)
		return
	}
	s.buffer[s.start] = e
	s.start = (s.start + 1) % s.capacity
}

// snapshot returns entries oldest first.
func (s *memoryStore) snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.buffer))
	out = append(out, s.buffer[s.start:]...)
	out = append(out, s.buffer[:s.start]...)
	return out
}

// MemoryHandler keeps the most recent records for the log endpoints.
// Handlers derived through WithAttrs share the same ring.
type MemoryHandler struct {
	store  *memoryStore
	level  slog.Leveler
	module string
}

// NewMemoryHandler keeps up to capacity records at or above level.
func NewMemoryHandler(capacity int, level slog.Leveler) *MemoryHandler {
	if capacity <= 0 {
		capacity = 1000
	}
	if level == nil {
		level = slog.LevelDebug
	}
	return &MemoryHandler{store: &memoryStore{capacity: capacity}, level: level}
}

func (h *MemoryHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *MemoryHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	entry := Entry{
		Timestamp: ts.Format("2006-01-02T15:04:05.000000"),
		Level:     LevelName(record.Level),
		Message:   redact.String(record.Message),
		Module:    h.module,
	}
	record.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" && entry.Module == "" {
			entry.Module = a.Value.String()
		}
		return true
	})
	if record.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
		entry.Function = shortFunction(frame.Function)
		entry.Line = frame.Line
		if entry.Module == "" {
			entry.Module = strings.TrimSuffix(filepath.Base(frame.File), ".go")
		}
	}
	h.store.append(entry)
	return nil
}

func (h *MemoryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	for _, a := range attrs {
		if a.Key == "component" {
			next.module = a.Value.String()
		}
	}
	return &next
}

func (h *MemoryHandler) WithGroup(string) slog.Handler {
	return h
}

// Logs returns the last limit entries, oldest first. A non-empty level keeps
// only entries of that level. limit <= 0 returns every match.
func (h *MemoryHandler) Logs(limit int, level string) []Entry {
	entries := h.store.snapshot()
	if level = strings.ToUpper(strings.TrimSpace(level)); level != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Level == level {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

// CountByLevel tallies the last limit entries per level name.
func (h *MemoryHandler) CountByLevel(limit int) map[string]int {
	counts := make(map[string]int)
	for _, e := range h.Logs(limit, "") {
		counts[e.Level]++
	}
	return counts
}

// shortFunction trims the package path: "a/b/pkg.(*T).Run" becomes "Run".
func shortFunction(fn string) string {
	if i := strings.LastIndexByte(fn, '/'); i >= 0 {
		fn = fn[i+1:]
	}
	if i := strings.LastIndexByte(fn, '.'); i >= 0 {
		fn = fn[i+1:]
	}
	return fn
}
