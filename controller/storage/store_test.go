package storage

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewBolt(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.CreateBucket("b"))
	return s
}

func TestBoltStore_CRUD(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Create("b", func(id string) interface{} {
		return &record{ID: id, Value: 1}
	}))

	var got record
	require.NoError(t, s.Get("b", "1", &got))
	assert.Equal(t, record{ID: "1", Value: 1}, got)

	require.NoError(t, s.Put("b", "1", record{ID: "1", Value: 2}))
	require.NoError(t, s.Get("b", "1", &got))
	assert.Equal(t, 2, got.Value)

	assert.ErrorIs(t, s.Get("b", "missing", &got), ErrKeyNotFound)
	assert.ErrorIs(t, s.Get("nope", "1", &got), ErrBucketNotFound)

	require.NoError(t, s.Put("b", "default", record{ID: "default", Value: 7}))
	require.NoError(t, s.Put("b", "default", record{ID: "default", Value: 8}))

	var all []record
	require.NoError(t, s.List("b", func(_ string, v []byte) error {
		var r record
		require.NoError(t, json.Unmarshal(v, &r))
		all = append(all, r)
		return nil
	}))
	assert.ElementsMatch(t, []record{{ID: "1", Value: 2}, {ID: "default", Value: 8}}, all)

	require.NoError(t, s.Delete("b", "1"))
	assert.ErrorIs(t, s.Get("b", "1", &got), ErrKeyNotFound)
}
