package annotation

import (
	"sync"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
// It preserves insertion order, which callers rely on for deterministic
// fuzzy tie-breaking.
type MemStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Annotation
	vocab Vocabulary
}

// NewMemStore returns an initialised [MemStore] with the given category
// vocabulary.
func NewMemStore(vocab Vocabulary) *MemStore {
	return &MemStore{
		byID:  make(map[string]Annotation),
		vocab: append(Vocabulary(nil), vocab...),
	}
}

// List implements [Store.List].
func (s *MemStore) List(filter FilterFunc) []Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Annotation, 0, len(s.order))
	for _, id := range s.order {
		a := s.byID[id]
		if filter != nil && !filter(a) {
			continue
		}
		result = append(result, cloneAnnotation(a))
	}
	return result
}

// Get implements [Store.Get].
func (s *MemStore) Get(id string) (Annotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return Annotation{}, false
	}
	return cloneAnnotation(a), true
}

// IDs implements [Store.IDs].
func (s *MemStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Add implements [Store.Add].
func (s *MemStore) Add(a Annotation) (Annotation, error) {
	if a.ID == "" {
		a.ID = NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[a.ID]; exists {
		return Annotation{}, ErrDuplicateID
	}
	s.byID[a.ID] = cloneAnnotation(a)
	s.order = append(s.order, a.ID)
	return a, nil
}

// Update implements [Store.Update].
func (s *MemStore) Update(a Annotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[a.ID]; !ok {
		return ErrNotFound
	}
	s.byID[a.ID] = cloneAnnotation(a)
	return nil
}

// Vocabulary implements [Store.Vocabulary].
func (s *MemStore) Vocabulary() Vocabulary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(Vocabulary(nil), s.vocab...)
}

// cloneAnnotation deep-copies an annotation so snapshots never alias store
// state.
func cloneAnnotation(a Annotation) Annotation {
	c := a
	c.SecondaryCategories = append([]string(nil), a.SecondaryCategories...)
	c.Tags = append([]string(nil), a.Tags...)
	if a.Order != nil {
		v := *a.Order
		c.Order = &v
	}
	return c
}
