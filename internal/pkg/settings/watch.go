package settings

import (
	"context"
	"fmt"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"path/filepath"
)

// Watch reloads the config file whenever it is written or replaced and passes the new settings to onChange.
// The directory is watched rather than the file, so editors that save by renaming are noticed as well.
// Watching stops when ctx is done.
func (instance *Config) Watch(ctx context.Context, onChange func(Settings)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher() failed: %w", err)
	}

	configFile := filepath.Clean(instance.paths.ConfigFile())
	if err := watcher.Add(filepath.Dir(configFile)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching %s failed: %w", filepath.Dir(configFile), err)
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != configFile {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				log.Info().Str("path", event.Name).Str("operation", event.Op.String()).Msg("config file changed")
				settings := instance.reload()
				if onChange != nil {
					onChange(settings)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("config watcher failed")
			}
		}
	}()

	return nil
}
