package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAverageAfterFullWindow(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT)-1; i++ {
		m.Update(0.010)
	}
	assert.Zero(t, m.FrameTime())

	m.Update(0.010)
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	// Five frames of 250ms cross the one second mark once.
	for i := 0; i < 5; i++ {
		m.Update(0.25)
	}
	fps, _ := m.Frame()
	assert.Equal(t, 4.0, fps)
}

func TestClockElapsed(t *testing.T) {
	c := NewClock()
	c.Update()
	assert.Zero(t, c.Elapsed())

	c.Start()
	time.Sleep(5 * time.Millisecond)
	c.Update()
	first := c.Elapsed()
	require.Greater(t, first, 0.0)

	c.Stop()
	time.Sleep(2 * time.Millisecond)
	c.Update()
	assert.Equal(t, first, c.Elapsed())
}

func TestSetLogLevel(t *testing.T) {
	require.NoError(t, SetLogLevel("info"))
	assert.Error(t, SetLogLevel("loud"))
	require.NoError(t, SetLogLevel("debug"))
}
