package core

import "sync"

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	/* Context usage:
	 * key_code = ctx.Key
	 */
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * width = ctx.U32[0]
	 * height = ctx.U32[1]
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// Window iconified. The draw loop pauses until restored.
	EVENT_CODE_MINIMIZED SystemEventCode = 0x09
	EVENT_CODE_RESTORED  SystemEventCode = 0x0A

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// Key codes the engine reacts to. Values follow the glfw key table.
type KeyCode uint16

const (
	KEY_ESCAPE KeyCode = 256
	KEY_F11    KeyCode = 300
)

type EventContext struct {
	Code   SystemEventCode
	Sender interface{}
	U32    [4]uint32
	Key    KeyCode
}

// Should return true if handled.
type FnOnEvent func(ctx EventContext) bool

// EventBus dispatches events to registered listeners in registration order.
// Fire may be called from glfw callbacks and from other goroutines.
type EventBus struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]FnOnEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]FnOnEvent),
	}
}

// Register to listen for when events are sent with the provided code.
func (eb *EventBus) Register(code SystemEventCode, onEvent FnOnEvent) bool {
	if onEvent == nil || code <= 0 {
		return false
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.registered[code] = append(eb.registered[code], onEvent)
	return true
}

// Fires an event to listeners of the given code. If an event handler returns
// true, the event is considered handled and is not passed on to any more listeners.
func (eb *EventBus) Fire(ctx EventContext) bool {
	eb.mu.RLock()
	listeners := append([]FnOnEvent(nil), eb.registered[ctx.Code]...)
	eb.mu.RUnlock()

	for _, l := range listeners {
		if l(ctx) {
			return true
		}
	}
	return false
}

// Shutdown drops every listener.
func (eb *EventBus) Shutdown() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.registered = make(map[SystemEventCode][]FnOnEvent)
}
