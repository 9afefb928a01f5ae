package matref

import (
	"context"
	"sync"
)

// MaterialQuery defines filters for listing materials.
type MaterialQuery struct {
	// Type filters by material type (empty matches all).
	Type MaterialType

	// Tags filters to materials having ANY of the specified tags.
	Tags []string

	// Limit is the maximum number of results (0 = no limit).
	Limit int

	// Offset is the number of results to skip (for pagination).
	Offset int
}

// MaterialStorage is the interface for pluggable material storage backends.
// Implementations must be safe for concurrent use.
type MaterialStorage interface {
	// Get retrieves a material by ID.
	// Returns a not found error if the material doesn't exist.
	Get(ctx context.Context, id string) (*Material, error)

	// GetByIDs retrieves the materials with the given IDs in request order.
	// Unknown IDs are skipped; duplicates are returned once.
	GetByIDs(ctx context.Context, ids []string) ([]*Material, error)

	// Save inserts or replaces a material. An empty ID is generated,
	// CreatedAt is kept for existing materials and UpdatedAt is set to now.
	Save(ctx context.Context, m *Material) error

	// Delete removes a material.
	// Returns a not found error if the material doesn't exist.
	Delete(ctx context.Context, id string) error

	// List returns materials matching the query, most recently updated first.
	List(ctx context.Context, query *MaterialQuery) ([]*Material, error)

	// Count returns the number of materials matching the query's filters.
	// Limit and Offset are ignored.
	Count(ctx context.Context, query *MaterialQuery) (int, error)

	// Search returns materials whose name, description or any tag contains
	// keyword, case-insensitively, most recently updated first.
	Search(ctx context.Context, keyword string) ([]*Material, error)

	// Tags returns every distinct tag, sorted.
	Tags(ctx context.Context) ([]string, error)

	// Exists checks if a material with the given ID exists.
	Exists(ctx context.Context, id string) (bool, error)

	// Close releases any resources held by the storage.
	Close() error
}

// StorageDriver is a factory for creating storage instances.
// Drivers register themselves during init().
type StorageDriver interface {
	// Open creates a new storage instance with the given connection string.
	// The format of the connection string is driver-specific.
	Open(connectionString string) (MaterialStorage, error)
}

// Storage driver registry
var (
	storageDriversMu sync.RWMutex
	storageDrivers   = make(map[string]StorageDriver)
)

// RegisterStorageDriver registers a storage driver by name.
// Panics if a driver with the same name is already registered.
func RegisterStorageDriver(name string, driver StorageDriver) {
	storageDriversMu.Lock()
	defer storageDriversMu.Unlock()

	if driver == nil {
		panic(ErrMsgNilStorageDriver)
	}
	if _, exists := storageDrivers[name]; exists {
		panic(ErrMsgDriverAlreadyRegistered + ": " + name)
	}
	storageDrivers[name] = driver
}

// OpenStorage opens a storage connection using the named driver.
//
// Example:
//
//	storage, err := matref.OpenStorage("memory", "")
//	storage, err := matref.OpenStorage("filesystem", "/var/lib/matref")
func OpenStorage(driverName, connectionString string) (MaterialStorage, error) {
	storageDriversMu.RLock()
	driver, ok := storageDrivers[driverName]
	storageDriversMu.RUnlock()

	if !ok {
		return nil, NewStorageDriverNotFoundError(driverName)
	}

	return driver.Open(connectionString)
}

// ListStorageDrivers returns the names of all registered storage drivers.
func ListStorageDrivers() []string {
	storageDriversMu.RLock()
	defer storageDriversMu.RUnlock()

	names := make([]string, 0, len(storageDrivers))
	for name := range storageDrivers {
		names = append(names, name)
	}
	return names
}

// Storage error message constants
const (
	ErrMsgNilStorageDriver         = "storage driver is nil"
	ErrMsgNilStorage               = "material storage is nil"
	ErrMsgDriverAlreadyRegistered  = "storage driver already registered"
	ErrMsgStorageDriverNotFound    = "storage driver not found"
	ErrMsgStorageClosed            = "storage is closed"
	ErrMsgNilMaterial              = "material is nil"
	ErrMsgInvalidStorageRoot       = "storage root directory is required"
	ErrMsgCreateStorageDir         = "failed to create storage directory"
	ErrMsgReadStorageDir           = "failed to read storage directory"
	ErrMsgReadMaterialFile         = "failed to read material file"
	ErrMsgWriteMaterialFile        = "failed to write material file"
	ErrMsgDeleteMaterialFile       = "failed to delete material file"
	ErrMsgInvalidMaterialIDPath    = "material ID is not a valid file name"
	ErrMsgPostgresEmptyConnString  = "postgres connection string is required"
	ErrMsgPostgresConnectionFailed = "failed to connect to postgres"
	ErrMsgPostgresQueryFailed      = "postgres query failed"
	ErrMsgPostgresMigrationFailed  = "postgres migration failed"
	ErrMsgPostgresMarshalFailed    = "failed to marshal material for postgres"
	ErrMsgPostgresUnmarshalFailed  = "failed to unmarshal material from postgres"
)

// NewStorageDriverNotFoundError creates an error for missing storage driver.
func NewStorageDriverNotFoundError(name string) error {
	return &StorageError{
		Message: ErrMsgStorageDriverNotFound,
		ID:      name,
	}
}

// NewStorageClosedError creates an error for operations on closed storage.
func NewStorageClosedError() error {
	return &StorageError{
		Message: ErrMsgStorageClosed,
	}
}

// StorageError represents a storage-related error.
type StorageError struct {
	Message string
	ID      string
	Cause   error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	msg := e.Message
	if e.ID != "" {
		msg += ": " + e.ID
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
