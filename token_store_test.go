package account_test

import (
	"path/filepath"
	"testing"

	account "github.com/iblameyuvraj/carpartsdetectionsystem"
	"github.com/stretchr/testify/assert"
)

func TestBoltTokenStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := account.NewBoltTokenStoreFromFile(path, nil)
	assert.NoError(t, err)
	defer store.Close()

	// empty store loads empty
	token, err := store.Load()
	assert.NoError(t, err)
	assert.Empty(t, token)

	assert.NoError(t, store.Save("token-1"))

	token, err = store.Load()
	assert.NoError(t, err)
	assert.Equal(t, "token-1", token)

	// saving replaces
	assert.NoError(t, store.Save("token-2"))
	token, _ = store.Load()
	assert.Equal(t, "token-2", token)

	assert.NoError(t, store.Clear())
	token, err = store.Load()
	assert.NoError(t, err)
	assert.Empty(t, token)

	// clearing an empty store is a no-op
	assert.NoError(t, store.Clear())
}

func TestBoltTokenStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := account.NewBoltTokenStoreFromFile(path, nil)
	assert.NoError(t, err)
	assert.NoError(t, store.Save("token-1"))
	assert.NoError(t, store.Close())

	reopened, err := account.NewBoltTokenStoreFromFile(path, nil)
	assert.NoError(t, err)
	defer reopened.Close()

	token, err := reopened.Load()
	assert.NoError(t, err)
	assert.Equal(t, "token-1", token)
}

func TestMemoryTokenStore(t *testing.T) {
	store := account.NewMemoryTokenStore()

	token, err := store.Load()
	assert.NoError(t, err)
	assert.Empty(t, token)

	assert.NoError(t, store.Save("token-1"))
	token, _ = store.Load()
	assert.Equal(t, "token-1", token)

	assert.NoError(t, store.Clear())
	token, _ = store.Load()
	assert.Empty(t, token)
}
