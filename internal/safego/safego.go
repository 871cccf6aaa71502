// Package safego runs background units with panic recovery so one bad
// extraction or save never takes the process down.
package safego

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/studiowebux/keyclash/internal/logging"
)

// PanicHandler receives panic details from recovered goroutines
type PanicHandler func(name string, recovered any, stack []byte)

var (
	panicHandlerMu sync.RWMutex
	panicHandler   PanicHandler
)

// SetPanicHandler registers a global handler for recovered panics
func SetPanicHandler(handler PanicHandler) {
	panicHandlerMu.Lock()
	panicHandler = handler
	panicHandlerMu.Unlock()
}

// Run executes fn and converts panics into logged errors. It returns the
// recovered value as an error, nil when fn returned normally.
// Runtime-fatal errors (concurrent map writes) are not recoverable.
func Run(name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			label := name
			if label == "" {
				label = "goroutine"
			}
			stack := debug.Stack()
			logging.ErrorLog.Printf("panic in %s: %v\n%s", label, r, stack)
			err = fmt.Errorf("panic in %s: %v", label, r)

			panicHandlerMu.RLock()
			handler := panicHandler
			panicHandlerMu.RUnlock()
			if handler != nil {
				func() {
					defer func() { _ = recover() }()
					handler(label, r, stack)
				}()
			}
		}
	}()
	fn()
	return nil
}

// Go runs fn in a new goroutine with panic recovery
func Go(name string, fn func()) {
	go Run(name, fn)
}
