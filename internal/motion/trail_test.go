package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIDs(samples []Sample) []uint64 {
	ids := make([]uint64, len(samples))
	for i, s := range samples {
		ids[i] = s.ID
	}
	return ids
}

func TestTrail_PushEvictsOldest(t *testing.T) {
	tr := NewTrail(3)

	for i := uint64(0); i < 3; i++ {
		_, evicted := tr.Push(Sample{ID: i})
		assert.False(t, evicted)
	}
	assert.Equal(t, 3, tr.Len())

	old, evicted := tr.Push(Sample{ID: 3})
	require.True(t, evicted)
	assert.Equal(t, uint64(0), old.ID)
	assert.Equal(t, []uint64{1, 2, 3}, sampleIDs(tr.Samples()))
}

func TestTrail_Clear(t *testing.T) {
	tr := NewTrail(2)
	tr.Push(Sample{ID: 1})
	tr.Push(Sample{ID: 2})
	tr.Push(Sample{ID: 3})

	tr.Clear()
	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.Samples())

	tr.Push(Sample{ID: 4})
	assert.Equal(t, []uint64{4}, sampleIDs(tr.Samples()))
}

func TestTrail_Resize(t *testing.T) {
	tr := NewTrail(4)
	for i := uint64(0); i < 6; i++ {
		tr.Push(Sample{ID: i})
	}

	tr.Resize(2)
	assert.Equal(t, 2, tr.Cap())
	assert.Equal(t, []uint64{4, 5}, sampleIDs(tr.Samples()))

	tr.Resize(5)
	tr.Push(Sample{ID: 6})
	assert.Equal(t, []uint64{4, 5, 6}, sampleIDs(tr.Samples()))
}

func TestTrail_InvalidCapacity(t *testing.T) {
	tr := NewTrail(0)
	assert.Equal(t, 1, tr.Cap())
	tr.Push(Sample{ID: 1})
	tr.Push(Sample{ID: 2})
	assert.Equal(t, []uint64{2}, sampleIDs(tr.Samples()))
}
