// Package paradigm implements the typed (paradigm, method) registry that
// replaces the name-convention dispatch (M_request/M_response on a class
// whose own name doubles as the paradigm name) the original design used.
// A paradigm is registered once, explicitly, by name; each method it
// exposes carries its own request/response schema fragments and handler,
// so lookup and validation never need reflection.
package paradigm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tenzoki/meshd/internal/envelope"
)

// Fragment is a JSON Schema fragment contributed by one side (request or
// response) of a method: the properties and required names the envelope
// validator key-merges into the fixed envelope schema.
type Fragment struct {
	Properties map[string]interface{}
	Required   []string
}

// HandlerFunc computes a response body (method fields only, no envelope
// routing fields) for a validated request envelope.
type HandlerFunc func(env *envelope.Envelope) (map[string]json.RawMessage, error)

// BuildRequestFunc flattens method-specific request data into fields ready
// to be merged onto an outgoing envelope. Most methods can use FieldsOf
// directly; it exists as a named type so paradigms can do more if needed.
type BuildRequestFunc func(data interface{}) (map[string]json.RawMessage, error)

// Method is one named operation within a paradigm.
type Method struct {
	Name             string
	RequestFragment  Fragment
	ResponseFragment Fragment
	BuildRequest     BuildRequestFunc
	Handle           HandlerFunc
}

// Paradigm is a named collection of methods sharing a validator.
type Paradigm struct {
	Name    string
	Methods map[string]*Method
}

// Registry is a process-wide, read-only-after-setup mapping from paradigm
// name to paradigm. It is owned by the server runtime and passed to
// collaborators that need to dispatch or build envelopes, rather than being
// a package-level global.
type Registry struct {
	mu        sync.RWMutex
	paradigms map[string]*Paradigm
}

// NewRegistry returns an empty registry ready for Register calls.
func NewRegistry() *Registry {
	return &Registry{paradigms: make(map[string]*Paradigm)}
}

// Register adds a paradigm to the registry. Registering the same name twice
// is a programmer error and panics, since the registry is only ever
// populated once at server setup.
func (r *Registry) Register(p *Paradigm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.paradigms[p.Name]; exists {
		panic(fmt.Sprintf("paradigm: %q already registered", p.Name))
	}
	r.paradigms[p.Name] = p
}

// Lookup returns the method registered under (paradigmName, methodName).
func (r *Registry) Lookup(paradigmName, methodName string) (*Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.paradigms[paradigmName]
	if !ok {
		return nil, false
	}
	m, ok := p.Methods[methodName]
	return m, ok
}

// Paradigm returns the paradigm registered under name, for callers (the node
// paradigm's own methods, tests) that need its method set directly.
func (r *Registry) Paradigm(name string) (*Paradigm, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.paradigms[name]
	return p, ok
}

// UnknownMessage names the offending paradigm or method and enumerates the
// available choices in stable alphabetical order, matching the message
// shape the envelope validator surfaces for an unknown (paradigm, method).
func (r *Registry) UnknownMessage(paradigmName, methodName string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.paradigms[paradigmName]
	if !ok {
		names := make([]string, 0, len(r.paradigms))
		for n := range r.paradigms {
			names = append(names, n)
		}
		sort.Strings(names)
		return fmt.Sprintf("unknown paradigm %q; available paradigms: %s", paradigmName, strings.Join(names, ", "))
	}

	names := make([]string, 0, len(p.Methods))
	for n := range p.Methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return fmt.Sprintf("unknown method %q for paradigm %q; available methods: %s", methodName, paradigmName, strings.Join(names, ", "))
}

// Stamp sets the paradigm and method fields on an outgoing request
// envelope. Request builders set these two fields through Stamp rather than
// directly, mirroring the original design's decorator that stamped both
// fields automatically; responses copy theirs from the request they answer
// (see internal/request).
func Stamp(env *envelope.Envelope, paradigmName, methodName string) {
	env.Paradigm = paradigmName
	env.Method = methodName
}
