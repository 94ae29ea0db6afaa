// Package selection holds search results and the per-salt
// form/strength/packaging selection derived from them.
package selection

import (
	"maps"
	"slices"
	"sync"

	"github.com/sells-group/medsearch/internal/model"
)

// Selection is the chosen variant of one salt and its lowest price.
type Selection struct {
	Form      string   `json:"form" yaml:"form"`
	Strength  string   `json:"strength" yaml:"strength"`
	Packaging string   `json:"packaging" yaml:"packaging"`
	Price     *float64 `json:"price" yaml:"price"`
}

// Snapshot is a consistent copy of the state at one point in time.
type Snapshot struct {
	Results    []model.SearchResult
	Selections map[string]Selection
}

// Selection returns the selection recorded for salt.
func (s Snapshot) Selection(salt string) (Selection, bool) {
	sel, ok := s.Selections[salt]
	return sel, ok
}

// State holds the current result set and one Selection per salt.
//
// Selections change only through SetSelection (directly or via the Choose
// operations), and always as a whole record.
type State struct {
	mu         sync.RWMutex
	results    []model.SearchResult
	selections map[string]Selection
}

// NewState returns an empty state.
func NewState() *State {
	return &State{selections: make(map[string]Selection)}
}

// SetSelection records sel for salt, leaving every other salt untouched.
func (s *State) SetSelection(salt string, sel Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[salt] = sel
}

// Results returns the current result set.
func (s *State) Results() []model.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results
}

// Selection returns the selection for salt, if one has been set.
func (s *State) Selection(salt string) (Selection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sel, ok := s.selections[salt]
	return sel, ok
}

// Snapshot copies the state under a single read lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Results:    slices.Clone(s.results),
		Selections: maps.Clone(s.selections),
	}
}

// Replace swaps in results and applies the default selection of every
// result in one critical section, so readers never observe new results
// without their defaults. Selections for salts that no longer appear are
// kept but never rendered.
func (s *State) Replace(results []model.SearchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = results
	s.applyDefaults()
}

// applyDefaults sets the default selection for every current result that
// has one. Results without a complete form/strength/packaging chain are
// skipped. Must be called with s.mu held.
func (s *State) applyDefaults() {
	for i := range s.results {
		if sel, ok := DefaultSelection(&s.results[i]); ok {
			s.selections[s.results[i].Salt] = sel
		}
	}
}

// ChooseForm selects form for salt and resets strength and packaging to the
// first entries under it. It reports false, changing nothing, when salt is
// unknown, form is not one of its available forms, or the form has no
// strength with a packaging.
func (s *State) ChooseForm(salt, form string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(salt)
	if r == nil || !r.HasForm(form) {
		return false
	}
	sel, ok := deriveFromForm(r, form)
	if !ok {
		return false
	}
	s.selections[salt] = sel
	return true
}

// ChooseStrength keeps form, selects strength and resets packaging to the
// first entry under it.
func (s *State) ChooseStrength(salt, form, strength string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(salt)
	if r == nil {
		return false
	}
	sel, ok := deriveFromStrength(r, form, strength)
	if !ok {
		return false
	}
	s.selections[salt] = sel
	return true
}

// ChoosePackaging keeps form and strength, selects packaging and recomputes
// the price.
func (s *State) ChoosePackaging(salt, form, strength, packaging string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(salt)
	if r == nil {
		return false
	}
	if _, ok := r.Offers(form, strength, packaging); !ok {
		return false
	}
	s.selections[salt] = Selection{
		Form:      form,
		Strength:  strength,
		Packaging: packaging,
		Price:     LowestPrice(r, form, strength, packaging),
	}
	return true
}

// find must be called with s.mu held.
func (s *State) find(salt string) *model.SearchResult {
	for i := range s.results {
		if s.results[i].Salt == salt {
			return &s.results[i]
		}
	}
	return nil
}
