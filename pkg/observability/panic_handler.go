package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers a panic and logs it with its stack. It must be deferred directly:
//
//	defer observability.RecoverPanic(logger, "gauge refresh")
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
	}
}

// PanicError converts a recovered value into an error, logging the stack.
// It returns nil when r is nil:
//
//	defer func() {
//		if perr := observability.PanicError(logger, "copy table", recover()); perr != nil {
//			err = perr
//		}
//	}()
func PanicError(logger *Logger, where string, r interface{}) error {
	if r == nil {
		return nil
	}
	logPanic(logger, where, r)
	return fmt.Errorf("panic in %s: %v", where, r)
}

func logPanic(logger *Logger, where string, r interface{}) {
	logger.WithField("panic", fmt.Sprint(r)).
		WithField("stack", string(debug.Stack())).
		WithField("context", where).
		Error("PANIC recovered")
}
