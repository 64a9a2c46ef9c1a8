package receiver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Preset is a receiver declared by id, typically from the config file.
type Preset struct {
	ID   string
	Spec Spec
}

type appliedPreset struct {
	spec   Spec
	handle Handle
}

// PresetSet keeps the registry in step with a declared list of presets.
// Receivers registered outside the set are never touched.
type PresetSet struct {
	reg *Registry

	mu      sync.Mutex
	applied map[string]appliedPreset
}

// NewPresetSet creates an empty set bound to reg.
func NewPresetSet(reg *Registry) *PresetSet {
	return &PresetSet{reg: reg, applied: make(map[string]appliedPreset)}
}

// Apply registers new presets, unregisters removed ones and re-registers
// changed ones. Every failure is reported; successful changes are kept.
func (s *PresetSet) Apply(ctx context.Context, presets []Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]Spec, len(presets))
	for _, p := range presets {
		spec := p.Spec
		if spec.Source == "" {
			spec.Source = "preset:" + p.ID
		}
		want[p.ID] = spec
	}

	var errs []error
	for _, id := range sortedIDs(s.applied) {
		cur := s.applied[id]
		if spec, keep := want[id]; keep && spec.equal(cur.spec) {
			continue
		}
		if err := s.reg.Unregister(ctx, cur.handle); err != nil && !errors.Is(err, ErrInvalidHandle) {
			errs = append(errs, fmt.Errorf("preset %s: %w", id, err))
			continue
		}
		delete(s.applied, id)
	}

	for _, p := range presets {
		if _, done := s.applied[p.ID]; done {
			continue
		}
		spec := want[p.ID]
		h, err := s.reg.Register(ctx, spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("preset %s: %w", p.ID, err))
			continue
		}
		s.applied[p.ID] = appliedPreset{spec: spec, handle: h}
	}
	return errors.Join(errs...)
}

// Handles returns the handle of every applied preset by id.
func (s *PresetSet) Handles() map[string]Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Handle, len(s.applied))
	for id, a := range s.applied {
		out[id] = a.handle
	}
	return out
}

func sortedIDs(m map[string]appliedPreset) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
