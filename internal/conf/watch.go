package conf

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tphakala/scopelog/internal/errors"
)

// reloadDelay collapses the bursts of events editors produce on save.
const reloadDelay = 100 * time.Millisecond

// Watch reloads the configuration file after each change and passes the
// result to fn, until ctx is done. Load must have found a file first. The
// directory is watched so that files replaced by rename are picked up.
func (l *Loader) Watch(ctx context.Context, fn func(*Settings, error)) error {
	path := l.ConfigFileUsed()
	if path == "" {
		return errors.New(errors.NewStd("no configuration file to watch")).
			Component(componentConf).
			Category(errors.CategoryState).
			Build()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New(err).Component(componentConf).Category(errors.CategoryFileIO).Build()
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return errors.New(err).
			Component(componentConf).
			Category(errors.CategoryFileIO).
			Setting("config", path).
			Build()
	}

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(reloadDelay)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fn(nil, errors.New(err).Component(componentConf).Category(errors.CategoryFileIO).Build())
		case <-timer.C:
			fn(l.Load())
		}
	}
}
