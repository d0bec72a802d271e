package recency

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_EvictsOldestAtCapacity(t *testing.T) {
	s := New[string](3)

	s.AddSlice("AAAAAAAAAAA", "BBBBBBBBBBB", "CCCCCCCCCCC")

	assert.True(t, s.Contains("AAAAAAAAAAA"))
	assert.True(t, s.Contains("BBBBBBBBBBB"))
	assert.True(t, s.Contains("CCCCCCCCCCC"))
	assert.Equal(t, 3, s.Len())

	assert.True(t, s.Add("DDDDDDDDDDD"))

	assert.False(t, s.Contains("AAAAAAAAAAA"), "oldest code should be evicted")
	assert.True(t, s.Contains("BBBBBBBBBBB"))
	assert.True(t, s.Contains("CCCCCCCCCCC"))
	assert.True(t, s.Contains("DDDDDDDDDDD"))
	assert.Equal(t, 3, s.Len())

	want := []string{"BBBBBBBBBBB", "CCCCCCCCCCC", "DDDDDDDDDDD"}
	if diff := cmp.Diff(want, slices.Collect(s.All())); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}
}

func TestSet_FIFOEvictionOfFirstKey(t *testing.T) {
	for _, n := range []int{1, 2, 5, 16} {
		t.Run(fmt.Sprintf("capacity=%d", n), func(t *testing.T) {
			s := New[int](n)
			for i := 1; i <= n+1; i++ {
				s.Add(i)
			}

			assert.False(t, s.Contains(1))
			for i := 2; i <= n+1; i++ {
				assert.True(t, s.Contains(i), "expected %d to remain", i)
			}
			assert.Equal(t, n, s.Len())
		})
	}
}

func TestSet_AddExistingIsNoOp(t *testing.T) {
	s := New[string](3)
	s.AddSlice("a", "b", "c")

	assert.False(t, s.Add("a"), "second add must not insert")
	assert.Equal(t, 3, s.Len())

	// "a" keeps its original position, so it is still the next eviction.
	s.Add("d")
	assert.False(t, s.Contains("a"))
	assert.Equal(t, []string{"b", "c", "d"}, slices.Collect(s.All()))
}

func TestSet_AddTwiceInARow(t *testing.T) {
	s := New[string](2)
	assert.True(t, s.Add("x"))
	assert.False(t, s.Add("x"))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"x"}, slices.Collect(s.All()))
}

func TestSet_SizeNeverExceedsCapacity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, capacity := range []int{1, 3, 20} {
		s := New[int](capacity)
		for i := 0; i < 1000; i++ {
			s.Add(rng.Intn(50))
			require.LessOrEqual(t, s.Len(), capacity)
			require.Equal(t, s.Len(), len(slices.Collect(s.All())), "sequence and index out of sync")
		}
	}
}

func TestSet_ContainsUntilEvicted(t *testing.T) {
	s := New[int](4)
	s.Add(1)
	for i := 2; i <= 4; i++ {
		s.Add(i)
		assert.True(t, s.Contains(1), "1 must stay tracked before capacity pressure")
	}
	s.Add(5)
	assert.False(t, s.Contains(1))
}

func TestSet_ZeroCapacity(t *testing.T) {
	s := New[string](0)

	assert.False(t, s.Add("AAAAAAAAAAA"))
	assert.Equal(t, 0, s.AddSlice("BBBBBBBBBBB", "CCCCCCCCCCC"))

	assert.False(t, s.Contains("AAAAAAAAAAA"))
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, slices.Collect(s.All()))
}

func TestSet_Unbounded(t *testing.T) {
	s := NewUnbounded[int]()
	for i := 0; i < 500; i++ {
		s.Add(i)
	}

	assert.Equal(t, 500, s.Len())
	assert.Equal(t, -1, s.Cap())
	assert.True(t, s.Contains(0), "unbounded set must never evict")
	got := slices.Collect(s.All())
	assert.Equal(t, 0, got[0])
	assert.Equal(t, 499, got[len(got)-1])
}

func TestSet_NegativeCapacityPanics(t *testing.T) {
	assert.Panics(t, func() { New[string](-1) })
}

func TestSet_AddAll(t *testing.T) {
	s := New[string](10)
	inserted := s.AddAll(slices.Values([]string{"a", "b", "a", "c"}))

	assert.Equal(t, 3, inserted)
	assert.Equal(t, 3, s.Len())
}

func TestSet_AllIsRestartableAndNonMutating(t *testing.T) {
	s := New[int](3)
	s.AddSlice(1, 2, 3, 4)
	seq := s.All()

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, []int{2, 3, 4}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 3, s.Len())

	// Lazy: the view reflects inserts made after it was created.
	s.Add(5)
	assert.Equal(t, []int{3, 4, 5}, slices.Collect(seq))
}

func TestSet_AllEarlyStop(t *testing.T) {
	s := New[int](5)
	s.AddSlice(1, 2, 3)

	var got []int
	for k := range s.All() {
		got = append(got, k)
		if k == 2 {
			break
		}
	}
	assert.Equal(t, []int{1, 2}, got)
}

func TestSet_String(t *testing.T) {
	s := New[string](2)
	assert.Equal(t, "[]", s.String())

	s.AddSlice("a", "b", "c")
	assert.Equal(t, "[b c]", s.String())
}
