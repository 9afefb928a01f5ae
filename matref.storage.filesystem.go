package matref

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// FilesystemStorage stores materials as JSON files on the filesystem.
//
// Directory structure:
//
//	<root>/
//	  mat_0123456789ab.json
//	  mat_ba9876543210.json
//	  ...
type FilesystemStorage struct {
	mu     sync.RWMutex
	root   string
	closed bool
}

// FilesystemStorageDriver is the driver for creating FilesystemStorage instances.
type FilesystemStorageDriver struct{}

func init() {
	RegisterStorageDriver(StorageDriverNameFilesystem, &FilesystemStorageDriver{})
}

// Open creates a new FilesystemStorage instance.
// The connection string is the root directory path.
func (d *FilesystemStorageDriver) Open(connectionString string) (MaterialStorage, error) {
	return NewFilesystemStorage(connectionString)
}

// NewFilesystemStorage creates a new filesystem-based material storage.
// The root directory will be created if it doesn't exist.
func NewFilesystemStorage(root string) (*FilesystemStorage, error) {
	if root == "" {
		return nil, &StorageError{Message: ErrMsgInvalidStorageRoot}
	}

	if err := os.MkdirAll(root, FilesystemDirPermissions); err != nil {
		return nil, &StorageError{
			Message: ErrMsgCreateStorageDir,
			ID:      root,
			Cause:   err,
		}
	}

	return &FilesystemStorage{
		root: root,
	}, nil
}

// Get retrieves a material by ID.
func (s *FilesystemStorage) Get(ctx context.Context, id string) (*Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if validateMaterialIDForFilesystem(id) != nil {
		return nil, NewMaterialNotFoundError(id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	return s.loadMaterial(id)
}

// GetByIDs retrieves the materials with the given IDs in request order.
// Files are read concurrently.
func (s *FilesystemStorage) GetByIDs(ctx context.Context, ids []string) ([]*Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	ids = uniqueStrings(ids)
	loaded := make([]*Material, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(FilesystemLoadConcurrency)
	for i, id := range ids {
		if validateMaterialIDForFilesystem(id) != nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := s.loadMaterial(id)
			if err != nil {
				if IsNotFound(err) {
					return nil
				}
				return err
			}
			loaded[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]*Material, 0, len(ids))
	for _, m := range loaded {
		if m != nil {
			result = append(result, m)
		}
	}
	return result, nil
}

// Save inserts or replaces a material.
func (s *FilesystemStorage) Save(ctx context.Context, m *Material) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil {
		return &StorageError{Message: ErrMsgNilMaterial}
	}
	if m.ID != "" {
		if err := validateMaterialIDForFilesystem(m.ID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStorageClosedError()
	}

	var existing *Material
	if m.ID != "" {
		if loaded, err := s.loadMaterial(m.ID); err == nil {
			existing = loaded
		} else if !IsNotFound(err) {
			return err
		}
	}
	stampForSave(m, existing, time.Now())

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &StorageError{Message: ErrMsgWriteMaterialFile, ID: m.ID, Cause: err}
	}

	// Write to a temp file first so readers never see a partial file
	path := s.materialPath(m.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, FilesystemFilePermissions); err != nil {
		return &StorageError{Message: ErrMsgWriteMaterialFile, ID: m.ID, Cause: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &StorageError{Message: ErrMsgWriteMaterialFile, ID: m.ID, Cause: err}
	}

	return nil
}

// Delete removes a material.
func (s *FilesystemStorage) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if validateMaterialIDForFilesystem(id) != nil {
		return NewMaterialNotFoundError(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStorageClosedError()
	}

	if err := os.Remove(s.materialPath(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewMaterialNotFoundError(id)
		}
		return &StorageError{Message: ErrMsgDeleteMaterialFile, ID: id, Cause: err}
	}
	return nil
}

// List returns materials matching the query.
func (s *FilesystemStorage) List(ctx context.Context, query *MaterialQuery) ([]*Material, error) {
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
func (s *FilesystemStorage) Count(ctx context.Context, query *MaterialQuery) (int, error) {
	matched, err := s.filter(ctx, func(m *Material) bool {
		return matchesMaterialQuery(m, query)
	})
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// Search returns materials matching keyword.
func (s *FilesystemStorage) Search(ctx context.Context, keyword string) ([]*Material, error) {
	return s.filter(ctx, func(m *Material) bool {
		return matchesKeyword(m, keyword)
	})
}

// Tags returns every distinct tag, sorted.
func (s *FilesystemStorage) Tags(ctx context.Context) ([]string, error) {
	all, err := s.filter(ctx, func(*Material) bool { return true })
	if err != nil {
		return nil, err
	}
	return sortedTags(all), nil
}

// Exists checks if a material with the given ID exists.
func (s *FilesystemStorage) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if validateMaterialIDForFilesystem(id) != nil {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, NewStorageClosedError()
	}

	_, err := os.Stat(s.materialPath(id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, &StorageError{Message: ErrMsgReadMaterialFile, ID: id, Cause: err}
}

// Close marks the storage as closed.
func (s *FilesystemStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// filter loads every material and returns those accepted by keep, sorted.
func (s *FilesystemStorage) filter(ctx context.Context, keep func(*Material) bool) ([]*Material, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageClosedError()
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, &StorageError{Message: ErrMsgReadStorageDir, ID: s.root, Cause: err}
	}

	var result []*Material
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), FilesystemFileSuffix) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), FilesystemFileSuffix)
		m, err := s.loadMaterial(id)
		if err != nil {
			// Skip unreadable or foreign files
			continue
		}
		if keep(m) {
			result = append(result, m)
		}
	}
	sortByUpdatedDesc(result)
	return result, nil
}

// loadMaterial reads one material file. Caller must hold the lock.
func (s *FilesystemStorage) loadMaterial(id string) (*Material, error) {
	data, err := os.ReadFile(s.materialPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewMaterialNotFoundError(id)
		}
		return nil, &StorageError{Message: ErrMsgReadMaterialFile, ID: id, Cause: err}
	}

	var m Material
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &StorageError{Message: ErrMsgReadMaterialFile, ID: id, Cause: err}
	}
	return &m, nil
}

func (s *FilesystemStorage) materialPath(id string) string {
	return filepath.Join(s.root, id+FilesystemFileSuffix)
}

// validateMaterialIDForFilesystem rejects IDs that are not plain file names.
func validateMaterialIDForFilesystem(id string) error {
	if id == "" || strings.HasPrefix(id, ".") || strings.Contains(id, "..") ||
		strings.ContainsAny(id, "/\\:*?\"<>|") {
		return &StorageError{Message: ErrMsgInvalidMaterialIDPath, ID: id}
	}
	return nil
}
