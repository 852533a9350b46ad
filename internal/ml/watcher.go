package ml

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const defaultWatchDebounce = 200 * time.Millisecond

// Watch reloads the model whenever its file is written or recreated, until
// ctx is done. The parent directory is watched so atomic rename-into-place
// updates are seen too. Bursts of events within the debounce window cause a
// single reload.
func (s *Service) Watch(ctx context.Context) error {
	if s.config.ModelPath == "" {
		return errors.New("no model path to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create model watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(s.config.ModelPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	debounce := s.config.WatchDebounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}

	log.Info().Str("model_path", target).Msg("watching model file")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug().Str("event", event.Op.String()).Msg("model file changed")
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			// Reload logs and counts its own failures.
			_ = s.Reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("model watcher error")
		}
	}
}
