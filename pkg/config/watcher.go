package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"passiton/pkg/logx"
)

const (
	watchDebounce   = 250 * time.Millisecond
	watchRestartMin = 250 * time.Millisecond
	watchRestartMax = 5 * time.Second
)

// Watch watches the configuration file at path and calls onChange (debounced)
// whenever it is written, created or renamed into place. It blocks until ctx
// is cancelled.
//
// When the underlying watcher gets into a bad state (channel closed, delivery
// stops after editor rename dances), it is recreated with a small backoff.
func Watch(ctx context.Context, path string, log logx.Logger, onChange func()) error {
	dir := filepath.Dir(path)
	file := filepath.Base(path)

	// debounce to avoid reacting to partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, func() {
			if ctx.Err() != nil {
				return
			}
			onChange()
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	backoff := watchRestartMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ok, err := watchOnce(ctx, dir, file, log, debounce)
		if err != nil && !log.IsZero() {
			log.Warn("config watcher error; restarting", logx.String("path", path), logx.Err(err))
		}
		if ok {
			// clean exit: ctx cancelled
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > watchRestartMax {
			backoff = watchRestartMax
		}
	}
}

func watchOnce(ctx context.Context, dir, file string, log logx.Logger, debounce func()) (clean bool, err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false, err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return false, err
	}

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case ev, ok := <-w.Events:
			if !ok {
				return false, nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !log.IsZero() {
				log.Debug("config change detected; scheduling reload", logx.String("file", ev.Name), logx.String("op", ev.Op.String()))
			}
			debounce()
		case werr, ok := <-w.Errors:
			if !ok {
				return false, nil
			}
			return false, werr
		}
	}
}
