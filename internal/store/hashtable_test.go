package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dynkv/internal/wire"
)

func TestCreateRejectsExistingKey(t *testing.T) {
	h := NewInMemoryHashTable()
	require.NoError(t, h.Create("k", Entry{Value: "v1", ReplicaRole: wire.RolePrimary}))
	require.Error(t, h.Create("k", Entry{Value: "v2", ReplicaRole: wire.RolePrimary}))
}

func TestUpdateRequiresExistingKey(t *testing.T) {
	h := NewInMemoryHashTable()
	require.Error(t, h.Update("missing", Entry{Value: "v"}))

	require.NoError(t, h.Create("k", Entry{Value: "v1"}))
	require.NoError(t, h.Update("k", Entry{Value: "v2"}))

	e, ok := h.Read("k")
	require.True(t, ok)
	require.Equal(t, "v2", e.Value)
}

func TestDeleteRequiresExistingKey(t *testing.T) {
	h := NewInMemoryHashTable()
	require.Error(t, h.Delete("missing"))

	require.NoError(t, h.Create("k", Entry{Value: "v"}))
	require.NoError(t, h.Delete("k"))
	_, ok := h.Read("k")
	require.False(t, ok)
}

func TestIterateVisitsEveryEntry(t *testing.T) {
	h := NewInMemoryHashTable()
	require.NoError(t, h.Create("a", Entry{Value: "1"}))
	require.NoError(t, h.Create("b", Entry{Value: "2"}))

	seen := map[string]string{}
	h.Iterate(func(key string, e Entry) { seen[key] = e.Value })

	require.Equal(t, map[string]string{"a": "1", "b": "2"}, seen)
}
