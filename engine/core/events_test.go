package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusStopsAtFirstHandler(t *testing.T) {
	eb := NewEventBus()
	var calls []string

	require.True(t, eb.Register(EVENT_CODE_KEY_PRESSED, func(ctx EventContext) bool {
		calls = append(calls, "first")
		return ctx.Key == KEY_ESCAPE
	}))
	require.True(t, eb.Register(EVENT_CODE_KEY_PRESSED, func(ctx EventContext) bool {
		calls = append(calls, "second")
		return true
	}))

	assert.True(t, eb.Fire(EventContext{Code: EVENT_CODE_KEY_PRESSED, Key: KEY_ESCAPE}))
	assert.Equal(t, []string{"first"}, calls)

	calls = nil
	assert.True(t, eb.Fire(EventContext{Code: EVENT_CODE_KEY_PRESSED, Key: KEY_F11}))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestEventBusUnknownCode(t *testing.T) {
	eb := NewEventBus()
	assert.False(t, eb.Fire(EventContext{Code: EVENT_CODE_RESIZED}))
	assert.False(t, eb.Register(EVENT_CODE_RESIZED, nil))
}

func TestEventBusShutdownDropsListeners(t *testing.T) {
	eb := NewEventBus()
	eb.Register(EVENT_CODE_APPLICATION_QUIT, func(EventContext) bool { return true })
	eb.Shutdown()
	assert.False(t, eb.Fire(EventContext{Code: EVENT_CODE_APPLICATION_QUIT}))
}

func TestEventBusConcurrentFire(t *testing.T) {
	eb := NewEventBus()
	var mu sync.Mutex
	total := 0
	eb.Register(EVENT_CODE_RESIZED, func(ctx EventContext) bool {
		mu.Lock()
		total += int(ctx.U32[0])
		mu.Unlock()
		return true
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eb.Fire(EventContext{Code: EVENT_CODE_RESIZED, U32: [4]uint32{1, 1}})
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, total)
}
