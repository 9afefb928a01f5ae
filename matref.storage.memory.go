package matref

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is an in-memory implementation of MaterialStorage.
// It is primarily intended for testing and development.
// All data is lost when the process terminates.
type MemoryStorage struct {
	mu        sync.RWMutex
	materials map[string]*Material
	closed    bool
}

// MemoryStorageDriver is the driver for creating MemoryStorage instances.
type MemoryStorageDriver struct{}

func init() {
	RegisterStorageDriver(StorageDriverNameMemory, &MemoryStorageDriver{})
}

// Open creates a new MemoryStorage instance.
// The connection string is ignored for memory storage.
func (d *MemoryStorageDriver) Open(connectionString string) (MaterialStorage, error) {
	return NewMemoryStorage(), nil
}

// NewMemoryStorage creates a new in-memory material storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		materials: make(map[string]*Material),
	}
}

// Get retrieves a material by ID.
func (s *MemoryStorage) Get(ctx context.Context, id string) (*Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	m, ok := s.materials[id]
	if !ok {
		return nil, NewMaterialNotFoundError(id)
	}
	return m.Clone(), nil
}

// GetByIDs retrieves the materials with the given IDs in request order.
func (s *MemoryStorage) GetByIDs(ctx context.Context, ids []string) ([]*Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	result := make([]*Material, 0, len(ids))
	for _, id := range uniqueStrings(ids) {
		if m, ok := s.materials[id]; ok {
			result = append(result, m.Clone())
		}
	}
	return result, nil
}

// Save inserts or replaces a material.
func (s *MemoryStorage) Save(ctx context.Context, m *Material) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil {
		return &StorageError{Message: ErrMsgNilMaterial}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStorageClosedError()
	}

	stampForSave(m, s.materials[m.ID], time.Now())
	s.materials[m.ID] = m.Clone()
	return nil
}

// Delete removes a material.
func (s *MemoryStorage) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStorageClosedError()
	}

	if _, ok := s.materials[id]; !ok {
		return NewMaterialNotFoundError(id)
	}
	delete(s.materials, id)
	return nil
}

// List returns materials matching the query.
func (s *MemoryStorage) List(ctx context.Context, query *MaterialQuery) ([]*Material, error) {
	matched, err := s.filter(ctx, func(m *Material) bool {
		return matchesMaterialQuery(m, query)
	})
	if err != nil {
		return nil, err
	}
	if query == nil {
		return matched, nil
	}
	return applyPage(matched, query.Offset, query.Limit), nil
}

// Count returns the number of materials matching the query's filters.
func (s *MemoryStorage) Count(ctx context.Context, query *MaterialQuery) (int, error) {
	matched, err := s.filter(ctx, func(m *Material) bool {
		return matchesMaterialQuery(m, query)
	})
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// Search returns materials matching keyword.
func (s *MemoryStorage) Search(ctx context.Context, keyword string) ([]*Material, error) {
	return s.filter(ctx, func(m *Material) bool {
		return matchesKeyword(m, keyword)
	})
}

// Tags returns every distinct tag, sorted.
func (s *MemoryStorage) Tags(ctx context.Context) ([]string, error) {
	all, err := s.filter(ctx, func(*Material) bool { return true })
	if err != nil {
		return nil, err
	}
	return sortedTags(all), nil
}

// Exists checks if a material with the given ID exists.
func (s *MemoryStorage) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, NewStorageClosedError()
	}

	_, ok := s.materials[id]
	return ok, nil
}

// Close marks the storage as closed.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.materials = nil
	return nil
}

// filter returns sorted copies of the materials accepted by keep.
func (s *MemoryStorage) filter(ctx context.Context, keep func(*Material) bool) ([]*Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	result := make([]*Material, 0, len(s.materials))
	for _, m := range s.materials {
		if keep(m) {
			result = append(result, m.Clone())
		}
	}
	sortByUpdatedDesc(result)
	return result, nil
}
