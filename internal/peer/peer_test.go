package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAppliesDefaultPort(t *testing.T) {
	assert.Equal(t, "localhost:5555", Normalize("localhost"))
	assert.Equal(t, "localhost:9001", Normalize("localhost:9001"))
	assert.Equal(t, "2001:db8::1", Normalize("2001:db8::1"))
}

func TestMemoryStoreCreateIsIdempotent(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Create("localhost:9001")
	require.NoError(t, err)

	_, err = store.Create("localhost:9001")
	assert.Error(t, err)

	peers, err := store.List()
	require.NoError(t, err)
	assert.Len(t, peers, 1)
}

func TestMemoryStoreTouchUpdatesLastSeen(t *testing.T) {
	store := NewMemoryStore()
	p, err := store.Create("localhost:9001")
	require.NoError(t, err)

	require.NoError(t, store.Touch("localhost:9001"))

	peers, err := store.List()
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.True(t, !peers[0].LastSeenAt.Before(p.LastSeenAt))
}

func TestMemoryStoreExists(t *testing.T) {
	store := NewMemoryStore()
	ok, err := store.Exists("localhost:9001")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Create("localhost:9001")
	require.NoError(t, err)

	ok, err = store.Exists("localhost:9001")
	require.NoError(t, err)
	assert.True(t, ok)
}
