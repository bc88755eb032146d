// Package transform provides the named pure functions applied by FUNCTION
// field transforms and template filters. Registries are plain values built by
// constructors and injected into the mapping processor; engine instances
// never share registry state.
package transform

import (
	"fmt"
	"sort"
)

// Func is a pure transform: it receives the resolved field value and the
// transform's named options and returns the replacement value. Implementations
// must not mutate their input.
type Func func(value interface{}, options map[string]interface{}) (interface{}, error)

// TransformError reports a failed or unknown transform.
type TransformError struct {
	// Name is the transform function name
	Name string
	// Reason describes the failure
	Reason string
	// Err is the underlying error, if any
	Err error
}

func (e *TransformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transform %q: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("transform %q: %s", e.Name, e.Reason)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Registry maps transform names to functions. The zero value is unusable;
// build with NewRegistry.
type Registry struct {
	funcs map[string]Func
	// argNames maps a function to its positional option names, in order, for
	// template filter syntax like {{x | truncate(12)}}.
	argNames map[string][]string
}

// NewRegistry returns a registry pre-loaded with the builtin transforms.
func NewRegistry() *Registry {
	r := &Registry{
		funcs:    make(map[string]Func),
		argNames: make(map[string][]string),
	}
	registerBuiltins(r)
	return r
}

// Register adds or replaces a transform. argNames lists the option keys that
// positional filter arguments bind to, in order.
func (r *Registry) Register(name string, fn Func, argNames ...string) {
	r.funcs[name] = fn
	r.argNames[name] = argNames
}

// Has reports whether a transform is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Names returns the registered transform names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply invokes a registered transform. Unknown names and transform failures
// surface as *TransformError.
func (r *Registry) Apply(name string, value interface{}, options map[string]interface{}) (interface{}, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, &TransformError{Name: name, Reason: "unknown transform function"}
	}
	if options == nil {
		options = map[string]interface{}{}
	}
	out, err := fn(value, options)
	if err != nil {
		if te, ok := err.(*TransformError); ok {
			return nil, te
		}
		return nil, &TransformError{Name: name, Reason: "transform failed", Err: err}
	}
	return out, nil
}

// ApplyPositional invokes a transform with positional arguments, binding them
// to the function's declared option names. Used by template filters.
func (r *Registry) ApplyPositional(name string, value interface{}, args []interface{}) (interface{}, error) {
	if !r.Has(name) {
		return nil, &TransformError{Name: name, Reason: "unknown transform function"}
	}
	names := r.argNames[name]
	if len(args) > len(names) {
		return nil, &TransformError{Name: name, Reason: fmt.Sprintf("too many arguments: got %d, takes at most %d", len(args), len(names))}
	}
	options := make(map[string]interface{}, len(args))
	for i, arg := range args {
		options[names[i]] = arg
	}
	return r.Apply(name, value, options)
}
