package placement

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_OccupantsOrdered(t *testing.T) {
	t.Parallel()

	l := NewLayout(42, []Occupant{
		{ID: "c", Position: 20, Size: 1},
		{ID: "a", Position: 1, Size: 2},
		{ID: "zero", Position: 5, Size: 0},
		{ID: "b", Position: 10, Size: 4},
	})

	require.Equal(t, 3, l.Len())
	ids := []string{}
	for _, o := range l.Occupants() {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestLayout_At(t *testing.T) {
	t.Parallel()

	l := NewLayout(42, []Occupant{
		{ID: "a", Position: 1, Size: 2},
		{ID: "b", Position: 10, Size: 4},
	})

	o, ok := l.At(2)
	require.True(t, ok)
	assert.Equal(t, "a", o.ID)

	o, ok = l.At(13)
	require.True(t, ok)
	assert.Equal(t, "b", o.ID)

	_, ok = l.At(3)
	assert.False(t, ok)
	_, ok = l.At(14)
	assert.False(t, ok)
}

func TestLayout_AtDenseRack(t *testing.T) {
	t.Parallel()

	// 1U occupants on every odd unit up to 39, a 3U occupant at 40
	var occupants []Occupant
	for u := 1; u < 40; u += 2 {
		occupants = append(occupants, Occupant{ID: fmt.Sprintf("d%d", u), Position: u, Size: 1})
	}
	occupants = append(occupants, Occupant{ID: "top", Position: 40, Size: 3})
	l := NewLayout(42, occupants)

	for u := 1; u <= 42; u++ {
		var want string
		for _, o := range occupants {
			if o.Position <= u && u <= o.End() {
				want = o.ID
			}
		}
		got, ok := l.At(u)
		if want == "" {
			assert.False(t, ok, "U%d is free", u)
			continue
		}
		require.True(t, ok, "U%d is occupied", u)
		assert.Equal(t, want, got.ID, "U%d", u)
	}

	_, ok := l.At(0)
	assert.False(t, ok)
	_, ok = l.At(43)
	assert.False(t, ok)
}

func TestLayout_Free(t *testing.T) {
	t.Parallel()

	l := NewLayout(12, []Occupant{
		{ID: "a", Position: 1, Size: 2},
		{ID: "b", Position: 5, Size: 2},
		{ID: "c", Position: 7, Size: 1},
	})

	assert.Equal(t, []Range{{Start: 3, End: 4}, {Start: 8, End: 12}}, l.Free())
	assert.Equal(t, []Range{{Start: 1, End: 42}}, NewLayout(42, nil).Free())

	full := NewLayout(2, []Occupant{{ID: "a", Position: 1, Size: 2}})
	assert.Empty(t, full.Free())
}

func TestLayout_FirstFitAgreesWithCheck(t *testing.T) {
	t.Parallel()

	occupants := []Occupant{
		{ID: "a", Position: 1, Size: 2},
		{ID: "b", Position: 5, Size: 2},
		{ID: "c", Position: 7, Size: 1},
	}
	l := NewLayout(12, occupants)

	for size := 1; size <= 6; size++ {
		pos, ok := l.FirstFit(size)
		if size > 5 {
			assert.False(t, ok, "size %d", size)
			continue
		}
		require.True(t, ok, "size %d", size)
		assert.NoError(t, Check(12, occupants, pos, size, ""), "size %d at %d", size, pos)
		for p := 1; p < pos; p++ {
			assert.Error(t, Check(12, occupants, p, size, ""), "lower position %d should not fit size %d", p, size)
		}
	}
}
