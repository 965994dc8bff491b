package runloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_metricsDisabledByDefault(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	loop.ScheduleOnce(func() error {
		loop.Quit()
		return nil
	}, 0)
	require.NoError(t, loop.Run())

	assert.Equal(t, MetricsSnapshot{}, loop.Metrics())
}

func TestLoop_metricsCounters(t *testing.T) {
	loop, err := New(WithMetrics(true))
	require.NoError(t, err)

	target := loop.ScheduleOnce(func() error { return nil }, time.Hour)
	loop.ScheduleOnce(func() error {
		loop.Cancel(target)
		loop.Quit()
		return nil
	}, 0)

	require.NoError(t, loop.Run())

	m := loop.Metrics()
	assert.Equal(t, uint64(2), m.Scheduled)
	assert.Equal(t, uint64(1), m.Cancelled)
	assert.Equal(t, uint64(1), m.Cycles)
}
