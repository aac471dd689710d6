package render

import (
	"fmt"
	"sync"
)

// Library is the process-wide handle to the drawing host. The host is
// created on first Acquire and kept for the life of the process; later
// acquisitions share it. A failed initialization is retried on the next
// Acquire.
type Library struct {
	mu    sync.Mutex
	init  func() (Host, error)
	host  Host
	refs  int
	inits int
}

// NewLibrary creates a library that builds its host with init
func NewLibrary(init func() (Host, error)) *Library {
	return &Library{init: init}
}

// StaticLibrary wraps an already-built host
func StaticLibrary(host Host) *Library {
	return NewLibrary(func() (Host, error) { return host, nil })
}

// Acquire returns a handle on the host, initializing it if needed
func (l *Library) Acquire() (*Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.host == nil {
		host, err := l.init()
		if err != nil {
			return nil, fmt.Errorf("initialize drawing host: %w", err)
		}
		if host == nil {
			return nil, fmt.Errorf("initialize drawing host: %w", ErrHostNotReady)
		}
		l.host = host
		l.inits++
	}
	l.refs++
	return &Handle{lib: l, host: l.host}, nil
}

// Refs returns the number of unreleased handles
func (l *Library) Refs() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs
}

// Initializations returns how many times the host was built
func (l *Library) Initializations() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inits
}

func (l *Library) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.refs > 0 {
		l.refs--
	}
}

// Handle is one holder's claim on the library's host
type Handle struct {
	lib  *Library
	host Host
	once sync.Once
}

// Host returns the shared host
func (h *Handle) Host() Host {
	return h.host
}

// Release gives up the claim. Calling it more than once has no effect.
func (h *Handle) Release() {
	h.once.Do(h.lib.release)
}
