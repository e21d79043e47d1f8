package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/quarry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir() + "/nested/db"
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(func(tx *badger.Txn) error { return nil }, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestBackend_WithTransaction(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	key := []byte("k")

	t.Run("commits and exposes the transaction", func(t *testing.T) {
		err := backend.WithTransaction(ctx, func(txCtx context.Context) error {
			return backend.update(txCtx, func(tx *badger.Txn) error {
				return tx.Set(key, []byte("v"))
			})
		})
		require.NoError(t, err)

		var found bool
		require.NoError(t, backend.view(ctx, func(tx *badger.Txn) error {
			var err error
			found, err = exists(tx, key)
			return err
		}))
		assert.True(t, found)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		other := []byte("other")
		err := backend.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := backend.update(txCtx, func(tx *badger.Txn) error {
				return tx.Set(other, []byte("v"))
			}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		var found bool
		require.NoError(t, backend.view(ctx, func(tx *badger.Txn) error {
			var err error
			found, err = exists(tx, other)
			return err
		}))
		assert.False(t, found)
	})
}

func TestNextID_SkipsZero(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	seq, err := backend.GetSequence("seq:test")
	require.NoError(t, err)
	defer seq.Release()

	seen := map[uint64]bool{}
	for i := 0; i < 250; i++ {
		id, err := nextID(seq)
		require.NoError(t, err)
		assert.NotZero(t, id)
		assert.False(t, seen[uint64(id)])
		seen[uint64(id)] = true
	}
}
