package detect

import (
	"sync"
	"sync/atomic"
)

// Handle is a lazy-once wrapper around detector construction.
//
// The first Get constructs the detector from the factory; every later call
// returns the same instance (or the same construction error). Safe for
// concurrent first use: the factory runs exactly once even when multiple
// frame callbacks race on an unloaded model.
type Handle struct {
	factory func() (Detector, error)

	once   sync.Once
	det    Detector
	err    error
	loaded atomic.Bool
}

// NewHandle creates a handle that will construct the detector on first Get.
func NewHandle(factory func() (Detector, error)) *Handle {
	return &Handle{factory: factory}
}

// Get returns the detector, constructing it on first use.
func (h *Handle) Get() (Detector, error) {
	h.once.Do(func() {
		h.det, h.err = h.factory()
		if h.err == nil {
			h.loaded.Store(true)
		}
	})
	return h.det, h.err
}

// Loaded reports whether the detector has been constructed successfully.
// Advisory only, used for status reporting.
func (h *Handle) Loaded() bool {
	return h.loaded.Load()
}

// Close releases the detector if it was ever constructed.
func (h *Handle) Close() error {
	if h.loaded.Load() {
		return h.det.Close()
	}
	return nil
}
