// Package extension is a small SPI-style loader: components register named
// implementations of a capability (codec, compressor, load balancer, ...),
// and callers resolve an implementation by name, or fall back to the first
// one registered for that capability.
//
// This is deliberately separate from the wire-tag registries in codec and
// compress: those map a single byte on the wire to an implementation, while
// this package maps a human-chosen name from configuration — "which codec
// did the operator pick" rather than "which codec tag is on this frame".
package extension

import (
	"bufio"
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
)

//go:embed descriptors
var descriptors embed.FS

// ErrExtensionNotFound is returned when a name (or an entire capability) has
// no registered implementation.
var ErrExtensionNotFound = errors.New("extension: not found")

// Factory constructs a fresh instance of a named extension. Implementations
// are expected to be stateless or internally synchronized, since the loader
// caches and shares the instance it builds.
type Factory func() any

type loader struct {
	capability string

	mu         sync.Mutex
	order      []string // declaration order; order[0] is the default
	factories  map[string]Factory
	instances  map[string]any
	descLoaded bool
}

var (
	loadersMu sync.Mutex
	loaders   = map[string]*loader{}
)

func loaderFor(capability string) *loader {
	loadersMu.Lock()
	defer loadersMu.Unlock()
	l, ok := loaders[capability]
	if !ok {
		l = &loader{
			capability: capability,
			factories:  map[string]Factory{},
			instances:  map[string]any{},
		}
		loaders[capability] = l
	}
	return l
}

// Register associates a name with a factory for the given capability. Called
// from package init() functions that provide a capability implementation —
// e.g. the codec package registering "json", "msgpack", "gob". The first
// name ever registered for a capability (not necessarily the first loaded
// from its descriptor file) only matters if the descriptor file is absent or
// empty, in which case registration order becomes declaration order.
func Register(capability, name string, factory Factory) {
	l := loaderFor(capability)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.factories[name]; !exists {
		l.order = append(l.order, name)
	}
	l.factories[name] = factory
}

// GetExtensionLoader returns the loader for a capability, reading its
// descriptor file (if present under descriptors/<capability>) on first use
// to fix the declared preference order — mirroring a META-INF/services scan,
// but against an embedded file list fixed at compile time instead of the
// classpath.
func GetExtensionLoader(capability string) *loader {
	l := loaderFor(capability)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadDescriptorLocked()
	return l
}

func (l *loader) loadDescriptorLocked() {
	if l.descLoaded {
		return
	}
	l.descLoaded = true

	data, err := descriptors.ReadFile("descriptors/" + l.capability)
	if err != nil {
		// No descriptor shipped for this capability — registration order
		// (set by Register) stands as the declared order.
		return
	}

	var declared []string
	seen := map[string]bool{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if ci := strings.IndexByte(line, '#'); ci >= 0 {
			line = line[:ci]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name := line
		if eq := strings.IndexByte(line, '='); eq > 0 {
			name = strings.TrimSpace(line[:eq])
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		declared = append(declared, name)
	}
	if len(declared) > 0 {
		l.order = declared
	}
}

// Extension resolves a named implementation, constructing and caching it on
// first use.
func (l *loader) Extension(name string) (any, error) {
	if name == "" {
		return nil, fmt.Errorf("extension: empty name for capability %q", l.capability)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if inst, ok := l.instances[name]; ok {
		return inst, nil
	}
	factory, ok := l.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: capability %q name %q", ErrExtensionNotFound, l.capability, name)
	}
	inst := factory()
	l.instances[name] = inst
	return inst, nil
}

// DefaultExtension returns the first declared implementation for the
// capability — first line of the descriptor file if one was shipped,
// otherwise the first name ever Register-ed.
func (l *loader) DefaultExtension() (any, error) {
	l.mu.Lock()
	if len(l.order) == 0 {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: capability %q has no registered extensions", ErrExtensionNotFound, l.capability)
	}
	name := l.order[0]
	l.mu.Unlock()
	return l.Extension(name)
}

// Names returns the declared names for the capability, in declaration order.
func (l *loader) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}
