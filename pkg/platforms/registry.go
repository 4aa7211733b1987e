package platforms

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnsupportedPlatform is returned when no handler is registered for a name.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Registry maps platform names to handlers.
type Registry struct {
	// mu protects handlers.
	mu sync.RWMutex

	// handlers maps lowercase platform name to handler.
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Default returns a registry holding the built-in android, ios and
// blackberry handlers.
func Default() *Registry {
	r := NewRegistry()
	for _, h := range []Handler{NewAndroid(), NewIOS(), NewBlackBerry()} {
		// Built-in names are distinct.
		_ = r.Register(h)
	}
	return r
}

// Register adds a handler under its name.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(h.Name())
	if name == "" {
		return fmt.Errorf("handler has no name")
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("platform %s already registered", name)
	}

	r.handlers[name] = h
	return nil
}

// Unregister removes the handler registered under name.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = strings.ToLower(name)
	if _, exists := r.handlers[name]; !exists {
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, name)
	}

	delete(r.handlers, name)
	return nil
}

// Get returns the handler for name.
func (r *Registry) Get(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, name)
	}
	return h, nil
}

// List returns the registered platform names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
