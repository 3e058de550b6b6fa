package detection

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/straja-ai/placeholder/internal/placeholder"
)

const watchDebounce = 200 * time.Millisecond

// WatchLexicon reloads the lexicon from path whenever the file changes, until
// ctx ends. The parent directory is watched so editors that replace the file
// are picked up. A file that fails to parse leaves the active lexicon in place.
func (s *Service) WatchLexicon(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve lexicon path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer w.Close()
		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				fire = timer.C
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("lexicon watcher error", "error", err)
			case <-fire:
				fire = nil
				s.reloadFromFile(ctx, abs)
			}
		}
	}()
	return nil
}

func (s *Service) reloadFromFile(ctx context.Context, path string) {
	lex, err := placeholder.LoadLexiconFile(path)
	if err != nil {
		s.logger.Warn("lexicon reload skipped", "path", filepath.Base(path), "error", err)
		return
	}
	if lex.Fingerprint() == s.Lexicon().Fingerprint() {
		return
	}
	if err := s.Reload(ctx, lex); err != nil {
		s.logger.Error("lexicon reload failed", "path", filepath.Base(path), "error", err)
	}
}
