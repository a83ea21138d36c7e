package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassCountersRecord(t *testing.T) {
	c := newClassCounters()
	c.Record(1, 5*time.Millisecond, true)
	c.Record(3, 10*time.Millisecond, true)
	c.Record(6, 2*time.Millisecond, false)

	assert.Equal(t, uint64(10), c.Attempts.Load())
	assert.Equal(t, uint64(2), c.Successes.Load())
	hist := c.Histogram()
	assert.Equal(t, uint64(1), hist[1])
	assert.Equal(t, uint64(1), hist[3])
	assert.Equal(t, uint64(1), hist[6])
}

func TestRegistryClassIsolation(t *testing.T) {
	r := NewRegistry()
	r.Class("write-read").Record(1, time.Millisecond, true)
	r.Class("write-only").Record(2, time.Millisecond, true)

	assert.Equal(t, uint64(1), r.Class("write-read").Attempts.Load())
	assert.Equal(t, uint64(2), r.Class("write-only").Attempts.Load())
}

func TestRegistryProfile(t *testing.T) {
	r := NewRegistry()
	r.Profile("GetVCP", 5*time.Millisecond)
	r.Profile("GetVCP", 15*time.Millisecond)

	calls := r.Calls()
	stats, ok := calls["GetVCP"]
	require := assert.New(t)
	require.True(ok)
	require.Equal(uint64(2), stats.Count)
	require.Equal(20*time.Millisecond, stats.TotalElapsed)
}
