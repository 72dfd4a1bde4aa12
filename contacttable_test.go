package glasstokey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContactTable_InsertGetRemove(t *testing.T) {
	tbl := newContactTable()
	k1 := NewContactKey(0, 1)
	k2 := NewContactKey(0, 2)
	s1 := &ContactState{}
	s2 := &ContactState{}

	tbl.insert(k1, s1)
	tbl.insert(k2, s2)
	assert.Equal(t, 2, tbl.len())

	got, ok := tbl.get(k1)
	assert.True(t, ok)
	assert.Same(t, s1, got)

	tbl.remove(k1)
	assert.Equal(t, 1, tbl.len())
	_, ok = tbl.get(k1)
	assert.False(t, ok)

	got2, ok := tbl.get(k2)
	assert.True(t, ok)
	assert.Same(t, s2, got2)
}

func TestContactTable_ReinsertAfterRemoveReusesTombstone(t *testing.T) {
	tbl := newContactTable()
	k := NewContactKey(1, 42)
	tbl.insert(k, &ContactState{})
	tbl.remove(k)
	assert.Equal(t, 0, tbl.len())

	s := &ContactState{IsModifier: true}
	tbl.insert(k, s)
	got, ok := tbl.get(k)
	assert.True(t, ok)
	assert.True(t, got.IsModifier)
}

func TestContactTable_GrowsPastLoadFactor(t *testing.T) {
	tbl := newContactTable()
	for i := uint32(0); i < 200; i++ {
		tbl.insert(NewContactKey(0, i), &ContactState{})
	}
	assert.Equal(t, 200, tbl.len())
	for i := uint32(0); i < 200; i++ {
		_, ok := tbl.get(NewContactKey(0, i))
		assert.True(t, ok, "key %d should survive growth", i)
	}
}

func TestContactTable_ForEachVisitsAllLiveEntries(t *testing.T) {
	tbl := newContactTable()
	keys := []ContactKey{NewContactKey(0, 1), NewContactKey(0, 2), NewContactKey(1, 1)}
	for _, k := range keys {
		tbl.insert(k, &ContactState{})
	}
	seen := map[ContactKey]bool{}
	tbl.forEach(func(k ContactKey, _ *ContactState) {
		seen[k] = true
	})
	assert.Len(t, seen, 3)
	for _, k := range keys {
		assert.True(t, seen[k])
	}
}

func TestContactTable_ClearPreservingCapacity(t *testing.T) {
	tbl := newContactTable()
	tbl.insert(NewContactKey(0, 1), &ContactState{})
	tbl.insert(NewContactKey(0, 2), &ContactState{})
	tbl.clearPreservingCapacity()
	assert.Equal(t, 0, tbl.len())
	_, ok := tbl.get(NewContactKey(0, 1))
	assert.False(t, ok)
}
