package step

import "fmt"

// Constructor builds a Step from its Descriptor. Built-in and
// task-specific step types register one of these under a type name;
// task declarations then refer to steps purely by that name.
type Constructor func(desc Descriptor) (Step, error)

// Registry maps step type names to constructors, mirroring the
// tool-dispatch registry pattern: no inheritance hierarchy, just a
// name-keyed table of constructors the caller looks up by name.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{constructors: map[string]Constructor{}}
}

// Register adds a constructor under a step type name, overwriting any
// prior registration for that name.
func (r *Registry) Register(typeName string, ctor Constructor) {
	r.constructors[typeName] = ctor
}

// Build looks up the constructor for desc.Type and invokes it.
func (r *Registry) Build(desc Descriptor) (Step, error) {
	ctor, ok := r.constructors[desc.Type]
	if !ok {
		return nil, fmt.Errorf("unknown step type: %s", desc.Type)
	}
	return ctor(desc)
}

// Names returns the registered step type names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	return names
}
