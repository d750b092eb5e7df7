package ability

import (
	"errors"
	"fmt"
	"sort"

	"voxelbend.ai/internal/sim/host"
)

var ErrDuplicate = errors.New("ability already registered")

// Description is the static definition of an ability.
type Description struct {
	Name     string
	Element  string
	Cooldown uint64 // ticks
	// Activations lists the methods that start an instance.
	Activations []Activation
	// Harmless abilities do not trigger hit events on entities.
	Harmless bool
	// New builds a fresh instance for user. Activation happens afterwards.
	New func(user host.User) Instance
}

func (d *Description) Supports(method Activation) bool {
	for _, a := range d.Activations {
		if a == method {
			return true
		}
	}
	return false
}

// Registry maps ability names to descriptions.
type Registry struct {
	byName map[string]*Description
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*Description{}}
}

func (r *Registry) Register(d *Description) error {
	if d == nil || d.Name == "" || d.New == nil {
		return fmt.Errorf("register ability: incomplete description")
	}
	if _, ok := r.byName[d.Name]; ok {
		return fmt.Errorf("register %s: %w", d.Name, ErrDuplicate)
	}
	r.byName[d.Name] = d
	return nil
}

func (r *Registry) Lookup(name string) (*Description, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names returns registered ability names in lexical order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
