package orderedstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertInsertsInAscendingOrderRegardlessOfInsertionOrder(t *testing.T) {
	s := New[int, string]()
	s.Upsert(3, "c")
	s.Upsert(1, "a")
	s.Upsert(2, "b")

	keys, vals := s.List()
	assert.Equal(t, []int{1, 2, 3}, keys)
	assert.Equal(t, []string{"a", "b", "c"}, vals)
}

func TestUpsertOverwritesExistingKey(t *testing.T) {
	s := New[int, string]()
	s.Upsert(1, "a")
	s.Upsert(1, "z")

	v, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "z", v)
	assert.Equal(t, 1, s.Len())
}

func TestDeleteRemovesAndReindexes(t *testing.T) {
	s := New[int, string]()
	s.Upsert(1, "a")
	s.Upsert(2, "b")
	s.Upsert(3, "c")

	s.Delete(2)
	_, ok := s.Get(2)
	assert.False(t, ok)

	keys, _ := s.List()
	assert.Equal(t, []int{1, 3}, keys)

	v, ok := s.Get(3)
	require.True(t, ok)
	assert.Equal(t, "c", v)
}

func TestDeleteMissingKeyIsANoOp(t *testing.T) {
	s := New[int, string]()
	s.Upsert(1, "a")
	s.Delete(99)
	assert.Equal(t, 1, s.Len())
}

func TestGetOnEmptyStoreReturnsZeroValue(t *testing.T) {
	s := New[string, int]()
	v, ok := s.Get("missing")
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestRangeVisitsInAscendingOrderAndHonorsEarlyStop(t *testing.T) {
	s := New[int, string]()
	for _, k := range []int{5, 1, 4, 2, 3} {
		s.Upsert(k, "")
	}

	var visited []int
	s.Range(func(key int, _ string) bool {
		visited = append(visited, key)
		return key < 3
	})
	assert.Equal(t, []int{1, 2, 3}, visited)
}

func TestStringKeyedStore(t *testing.T) {
	s := New[string, int]()
	s.Upsert("beta", 2)
	s.Upsert("alpha", 1)
	s.Upsert("gamma", 3)

	keys, vals := s.List()
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, keys)
	assert.Equal(t, []int{1, 2, 3}, vals)
}
