package vulkan

import (
	"sync"

	"github.com/spaghettifunk/vkshadow/engine/core"
)

type deletion struct {
	name string
	fn   func()
}

// DeletionQueue destroys objects in the reverse order they were created.
type DeletionQueue struct {
	mu    sync.Mutex
	items []deletion
}

func (dq *DeletionQueue) Push(name string, fn func()) {
	dq.mu.Lock()
	dq.items = append(dq.items, deletion{name: name, fn: fn})
	dq.mu.Unlock()
}

func (dq *DeletionQueue) Len() int {
	dq.mu.Lock()
	defer dq.mu.Unlock()
	return len(dq.items)
}

func (dq *DeletionQueue) Flush() {
	dq.mu.Lock()
	items := dq.items
	dq.items = nil
	dq.mu.Unlock()

	for i := len(items) - 1; i >= 0; i-- {
		core.LogDebug("Destroying %s...", items[i].name)
		items[i].fn()
	}
}
