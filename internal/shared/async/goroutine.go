package async

import "runtime/debug"

// PanicLogger receives reports of recovered panics.
type PanicLogger interface {
	Error(format string, args ...any)
}

// Go runs fn on its own goroutine. The returned channel is closed once fn has
// returned, including when it panicked; the panic is logged and swallowed.
func Go(logger PanicLogger, name string, fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer Recover(logger, name)
		fn()
	}()
	return done
}

// Recover must be deferred directly. It reports whether a panic was caught.
func Recover(logger PanicLogger, name string) (recovered bool) {
	r := recover()
	if r == nil {
		return false
	}
	if logger != nil {
		logger.Error("panic in %s: %v\n%s", label(name), r, debug.Stack())
	}
	return true
}

func label(name string) string {
	if name == "" {
		return "background goroutine"
	}
	return name
}
