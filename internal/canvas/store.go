// Package canvas holds the live element and stroke state of one board.
package canvas

import (
	"context"
	"fmt"
	"sync"

	"github.com/satriahrh/papantulis/server/domain"
	"github.com/satriahrh/papantulis/server/domain/entities"
	"github.com/satriahrh/papantulis/server/domain/repositories"
)

// Observer receives every mutation applied to the store. It is called after
// the change is applied, with the store lock released.
type Observer func(entities.Mutation)

// Store is an in-memory, insertion ordered canvas
type Store struct {
	mu       sync.RWMutex
	order    []string
	elements map[string]entities.CanvasElement
	strokes  []entities.Stroke

	observeMu sync.Mutex
	observers []Observer
}

var (
	_ repositories.CanvasStore = (*Store)(nil)
	_ repositories.StrokeStore = (*Store)(nil)
)

// NewStore creates an empty canvas
func NewStore() *Store {
	return &Store{
		elements: make(map[string]entities.CanvasElement),
	}
}

// Observe registers an observer for applied mutations
func (s *Store) Observe(o Observer) {
	s.observeMu.Lock()
	defer s.observeMu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *Store) emit(m entities.Mutation) {
	s.observeMu.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.observeMu.Unlock()
	for _, o := range observers {
		o(m)
	}
}

// Add appends a new element
func (s *Store) Add(ctx context.Context, element entities.CanvasElement) error {
	if err := element.Validate(); err != nil {
		return fmt.Errorf("invalid element: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.elements[element.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("element %s already exists", element.ID)
	}
	s.elements[element.ID] = element
	s.order = append(s.order, element.ID)
	s.mu.Unlock()

	s.emit(entities.Mutation{Op: entities.MutationAdd, Element: &element})
	return nil
}

// Update overwrites an existing element in place
func (s *Store) Update(ctx context.Context, element entities.CanvasElement) error {
	if err := element.Validate(); err != nil {
		return fmt.Errorf("invalid element: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.elements[element.ID]; !exists {
		s.mu.Unlock()
		return fmt.Errorf("element %s: %w", element.ID, domain.ErrNotFound)
	}
	s.elements[element.ID] = element
	s.mu.Unlock()

	s.emit(entities.Mutation{Op: entities.MutationUpdate, Element: &element})
	return nil
}

// Replace swaps oldID for element at the same position
func (s *Store) Replace(ctx context.Context, oldID string, element entities.CanvasElement) error {
	if err := element.Validate(); err != nil {
		return fmt.Errorf("invalid element: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.elements[oldID]; !exists {
		s.mu.Unlock()
		return fmt.Errorf("element %s: %w", oldID, domain.ErrNotFound)
	}
	if _, exists := s.elements[element.ID]; exists && element.ID != oldID {
		s.mu.Unlock()
		return fmt.Errorf("element %s already exists", element.ID)
	}
	delete(s.elements, oldID)
	s.elements[element.ID] = element
	for i, id := range s.order {
		if id == oldID {
			s.order[i] = element.ID
			break
		}
	}
	s.mu.Unlock()

	s.emit(entities.Mutation{Op: entities.MutationReplace, Element: &element, PreviousID: oldID})
	return nil
}

// Delete removes the given elements. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	s.mu.Lock()
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, exists := s.elements[id]; exists {
			delete(s.elements, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		s.order = filterIDs(s.order, removed)
	}
	s.mu.Unlock()

	if len(removed) > 0 {
		s.emit(entities.Mutation{Op: entities.MutationDelete, IDs: removed})
	}
	return nil
}

// Get returns an element by id
func (s *Store) Get(ctx context.Context, id string) (entities.CanvasElement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.elements[id]
	return el, ok
}

// Elements returns the elements in insertion order
func (s *Store) Elements() []entities.CanvasElement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.CanvasElement, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.elements[id])
	}
	return out
}

// AddStroke appends an ink stroke
func (s *Store) AddStroke(ctx context.Context, stroke entities.Stroke) error {
	if err := stroke.Validate(); err != nil {
		return fmt.Errorf("invalid stroke: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.strokes {
		if existing.ID == stroke.ID {
			return fmt.Errorf("stroke %s already exists", stroke.ID)
		}
	}
	s.strokes = append(s.strokes, stroke)
	return nil
}

// Strokes returns the strokes in drawing order
func (s *Store) Strokes(ctx context.Context) []entities.Stroke {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.Stroke(nil), s.strokes...)
}

// RemoveStrokes removes all given strokes or none of them
func (s *Store) RemoveStrokes(ctx context.Context, ids ...string) error {
	s.mu.Lock()
	present := make(map[string]bool, len(s.strokes))
	for _, st := range s.strokes {
		present[st.ID] = true
	}
	for _, id := range ids {
		if !present[id] {
			s.mu.Unlock()
			return fmt.Errorf("stroke %s: %w", id, domain.ErrNotFound)
		}
	}

	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	kept := s.strokes[:0]
	for _, st := range s.strokes {
		if !remove[st.ID] {
			kept = append(kept, st)
		}
	}
	s.strokes = kept
	s.mu.Unlock()

	if len(ids) > 0 {
		s.emit(entities.Mutation{Op: entities.MutationRemoveStrokes, IDs: append([]string(nil), ids...)})
	}
	return nil
}

// Clear removes every element and stroke
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.order = nil
	s.elements = make(map[string]entities.CanvasElement)
	s.strokes = nil
	s.mu.Unlock()

	s.emit(entities.Mutation{Op: entities.MutationClear})
}

// Load replaces the store content with a persisted board
func (s *Store) Load(board *entities.Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = make([]string, 0, len(board.Elements))
	s.elements = make(map[string]entities.CanvasElement, len(board.Elements))
	for _, el := range board.Elements {
		if _, dup := s.elements[el.ID]; dup {
			continue
		}
		s.elements[el.ID] = el
		s.order = append(s.order, el.ID)
	}
	s.strokes = append([]entities.Stroke(nil), board.Strokes...)
}

// SnapshotInto copies the current content into board
func (s *Store) SnapshotInto(board *entities.Board) {
	board.Elements = s.Elements()
	board.Strokes = s.Strokes(context.Background())
	board.Touch()
}

func filterIDs(order, removed []string) []string {
	drop := make(map[string]bool, len(removed))
	for _, id := range removed {
		drop[id] = true
	}
	kept := order[:0]
	for _, id := range order {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	return kept
}
