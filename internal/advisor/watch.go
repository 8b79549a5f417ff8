package advisor

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch loads the prompt file at path into the store and reloads it whenever
// it changes, until ctx is cancelled. A file that fails to parse keeps the
// previous pack active.
func (s *PromptStore) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve prompt file: %w", err)
	}

	p, err := LoadPromptFile(abs)
	if err != nil {
		return err
	}
	s.Swap(p)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go s.watchLoop(ctx, watcher, abs)
	return nil
}

func (s *PromptStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			p, err := LoadPromptFile(path)
			if err != nil {
				log.Printf("[WARN] Prompt reload failed, keeping previous prompts: %v", err)
				continue
			}
			s.Swap(p)
			log.Printf("[INFO] Prompts reloaded from %s", path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[WARN] Prompt watcher error: %v", err)
		}
	}
}
