// Package watcher re-runs an analysis whenever Homebrew's installed set
// changes.
//
// Installing, upgrading or removing a package creates or deletes keg
// directories under <prefix>/Cellar and <prefix>/Caskroom. The Watcher
// subscribes to those directories and their immediate children with
// fsnotify, coalesces each burst of events into one callback after a quiet
// period, and stops when its context is cancelled.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Dirs(prefix), watcher.WithDebounce(2*time.Second))
//	if err != nil {
//		return err
//	}
//	defer w.Close()
//
//	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	return w.Run(ctx, func(ctx context.Context) error {
//		return analyze(ctx, true)
//	})
package watcher
