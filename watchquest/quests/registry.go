package quests

import "fmt"

// Registry exposes the immutable quest definitions loaded at startup. It is
// the single source of truth for quest configuration; there is deliberately
// no way to mutate it after construction.
type Registry struct {
	defs []Definition
	byID map[string]Definition
}

func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{
		defs: make([]Definition, 0, len(defs)),
		byID: make(map[string]Definition, len(defs)),
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("invalid quest config: %w", err)
		}
		if _, dup := r.byID[def.ID]; dup {
			return nil, fmt.Errorf("invalid quest config: duplicate quest id %q", def.ID)
		}
		r.defs = append(r.defs, def)
		r.byID[def.ID] = def
	}
	return r, nil
}

// Get returns the definition for id, or ErrUnknownQuest.
func (r *Registry) Get(id string) (Definition, error) {
	def, ok := r.byID[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownQuest, id)
	}
	return def, nil
}

// List returns all definitions in configuration order.
func (r *Registry) List() []Definition {
	out := make([]Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Milestones returns every milestone quest watching counterKey, in
// configuration order.
func (r *Registry) Milestones(counterKey string) []Definition {
	var out []Definition
	for _, def := range r.defs {
		if def.Kind == KindMilestone && def.CounterKey == counterKey {
			out = append(out, def)
		}
	}
	return out
}

// CounterKeys returns the distinct counter keys watched by milestone quests,
// in first-seen configuration order.
func (r *Registry) CounterKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, def := range r.defs {
		if def.Kind != KindMilestone || seen[def.CounterKey] {
			continue
		}
		seen[def.CounterKey] = true
		keys = append(keys, def.CounterKey)
	}
	return keys
}
