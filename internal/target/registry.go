package target

import (
	"fmt"
	"sync"
)

// Registry maps a URI scheme (the part before "://") to a Factory that
// builds an EventTarget for it, plus the fixed built-in targets (self,
// parent, invoke). Grounded on original_source's
// rsm/src/events/EventTargetFactoryImpl.cpp, which performs the same
// scheme-keyed lookup against a statically-registered table of processors.
type Registry struct {
	deliverer Deliverer

	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a Registry with no external schemes registered; a
// host wires in whichever I/O processors it supports (http, a message bus,
// etc.) via Register.
func NewRegistry(deliverer Deliverer) *Registry {
	return &Registry{
		deliverer: deliverer,
		factories: make(map[string]Factory),
	}
}

// Register binds scheme (e.g. "http", "https") to factory. Registering the
// same scheme twice replaces the prior factory.
func (r *Registry) Register(scheme string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[scheme] = factory
}

// Resolve turns a <send target="..."> URI, evaluated in the context of
// sourceSessionID, into a concrete EventTarget. A uri beginning with "!" is
// rejected outright per spec.md §4.4 (W3C test 159/194); everything else
// that isn't one of the "#_..." built-ins is looked up by scheme.
func (r *Registry) Resolve(sourceSessionID, uri string) (EventTarget, error) {
	if len(uri) > 0 && uri[0] == '!' {
		return nil, &invalidTargetError{uri: uri}
	}
	switch {
	case isSelfURI(uri):
		return &selfTarget{deliverer: r.deliverer, sessionID: sourceSessionID}, nil
	case isParentURI(uri):
		return &parentTarget{deliverer: r.deliverer, sessionID: sourceSessionID}, nil
	}
	if invokeID, ok := invokeIDFromURI(uri); ok {
		return &invokeTarget{deliverer: r.deliverer, sessionID: sourceSessionID, invokeID: invokeID}, nil
	}

	scheme := schemeOf(uri)
	if scheme == "" {
		return nil, fmt.Errorf("target: cannot resolve target uri %q", uri)
	}
	r.mu.RLock()
	factory, ok := r.factories[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("target: no io processor registered for scheme %q", scheme)
	}
	t, err := factory(uri)
	if err != nil {
		return nil, fmt.Errorf("target: building target for %q: %w", uri, err)
	}
	return t, nil
}

// Schemes reports every externally-registered scheme, used to populate the
// _ioprocessors system variable (spec.md §4.1).
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for scheme := range r.factories {
		out = append(out, scheme)
	}
	return out
}
