// Package errors - reporting hooks
package errors

import (
	"sync"
	"sync/atomic"
)

// ErrorHook is called for every EnhancedError built while hooks are registered.
// Hooks run synchronously on the goroutine that built the error and must be fast.
type ErrorHook func(ee *EnhancedError)

var (
	hooksMu     sync.RWMutex
	errorHooks  []ErrorHook
	hooksActive atomic.Bool
)

// AddErrorHook registers a hook that observes every built error
func AddErrorHook(hook ErrorHook) {
	if hook == nil {
		return
	}
	hooksMu.Lock()
	defer hooksMu.Unlock()
	errorHooks = append(errorHooks, hook)
	hooksActive.Store(true)
}

// ClearErrorHooks removes all registered hooks
func ClearErrorHooks() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	errorHooks = nil
	hooksActive.Store(false)
}

// runHooks notifies registered hooks. The fast path skips locking entirely
// when nothing is registered.
func runHooks(ee *EnhancedError) {
	if !hooksActive.Load() {
		return
	}
	hooksMu.RLock()
	hooks := make([]ErrorHook, len(errorHooks))
	copy(hooks, errorHooks)
	hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(ee)
	}
}
