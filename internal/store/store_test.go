package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]BlobStore {
	t.Helper()

	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]BlobStore{
		"memory": NewMemory(),
		"sqlite": db,
	}
}

func TestBlobStore(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get("missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set("remap.rules", []byte(`[1]`)))
			require.NoError(t, s.Set("remap.rules", []byte(`[1,2]`)))
			got, err := s.Get("remap.rules")
			require.NoError(t, err)
			assert.Equal(t, `[1,2]`, string(got))

			require.NoError(t, s.Delete("remap.rules"))
			_, err = s.Get("remap.rules")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing key is not an error
			assert.NoError(t, s.Delete("remap.rules"))
		})
	}
}

func TestBlobStoreKeys(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"cache.com.slack", "cache.com.google.Chrome", "cachex", "resolver.records"} {
				require.NoError(t, s.Set(k, []byte("{}")))
			}

			keys, err := s.Keys("cache.")
			require.NoError(t, err)
			assert.Equal(t, []string{"cache.com.google.Chrome", "cache.com.slack"}, keys)

			all, err := s.Keys("")
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	data := []byte("abc")
	require.NoError(t, m.Set("k", data))
	data[0] = 'x'

	got, err := m.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
