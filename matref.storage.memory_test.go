package matref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_NewMemoryStorage(t *testing.T) {
	storage := NewMemoryStorage()
	require.NotNil(t, storage)
	assert.NotNil(t, storage.materials)
	assert.False(t, storage.closed)
}

func TestMemoryStorage_Conformance(t *testing.T) {
	runStorageConformance(t, func(t *testing.T) MaterialStorage {
		return NewMemoryStorage()
	})
}
