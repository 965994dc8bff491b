package runloop

import (
	"sync"
)

// Process-wide default loop reference. This is an accessor to an
// externally-owned Loop, bound explicitly by the application's top level; it
// is not consulted by anything inside this package.
var defaultLoop struct {
	sync.RWMutex
	loop *Loop
}

// SetDefault binds the process-wide default loop. Passing nil unbinds it.
func SetDefault(loop *Loop) {
	defaultLoop.Lock()
	defer defaultLoop.Unlock()
	defaultLoop.loop = loop
}

// Default returns the process-wide default loop, or ErrNoDefault if
// SetDefault has not been called.
func Default() (*Loop, error) {
	defaultLoop.RLock()
	defer defaultLoop.RUnlock()
	if defaultLoop.loop == nil {
		return nil, ErrNoDefault
	}
	return defaultLoop.loop, nil
}
