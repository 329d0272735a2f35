package histogram

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketedRecordAndCount(t *testing.T) {
	h := NewBucketed()
	h.Record(1_000_000)
	h.Record(2_000_000)
	h.Record(-5)

	assert.Equal(t, uint64(3), h.Count())
}

func TestBucketedSnapshotDoesNotReset(t *testing.T) {
	h := NewBucketed()
	h.Record(5_000_000)

	snap := h.Snapshot()
	var total uint64
	for _, c := range snap {
		total += c
	}
	require.Equal(t, uint64(1), total)
	assert.Equal(t, uint64(1), h.Count())
}

func TestBucketedDrainResets(t *testing.T) {
	h := NewBucketed()
	h.Record(5_000_000)
	h.Record(9_000_000)

	drained := h.Drain()
	var total uint64
	for _, c := range drained {
		total += c
	}
	assert.Equal(t, uint64(2), total)
	assert.Equal(t, uint64(0), h.Count())

	snap := h.Snapshot()
	for _, c := range snap {
		assert.Equal(t, uint64(0), c)
	}
}

func TestMergeBuckets(t *testing.T) {
	a := NewBucketed()
	a.Record(1_000_000)
	b := NewBucketed()
	b.Record(1_000_000)
	b.Record(2_000_000)

	merged := MergeBuckets(a.Snapshot(), b.Snapshot())
	var total uint64
	for _, c := range merged {
		total += c
	}
	assert.Equal(t, uint64(3), total)
}

func TestPercentileFromBucketsInsufficientSamples(t *testing.T) {
	h := NewBucketed()
	h.Record(1_000_000)

	p := PercentileFromBuckets(h.Snapshot(), 0.5)
	assert.True(t, math.IsNaN(p))
}

func TestPercentileFromBucketsMonotonic(t *testing.T) {
	h := NewBucketed()
	for i := 0; i < 100; i++ {
		h.Record(int64(1_000_000 + i*10_000_000))
	}

	p50 := PercentileFromBuckets(h.Snapshot(), 0.5)
	p99 := PercentileFromBuckets(h.Snapshot(), 0.99)
	require.False(t, math.IsNaN(p50))
	require.False(t, math.IsNaN(p99))
	assert.Less(t, p50, p99)
}
