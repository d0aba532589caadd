package vulkan

import (
	"sync"

	"golang.org/x/exp/slices"
)

type LockGroup string

const (
	ResourceManagement LockGroup = "resource_management"
	DescriptorUpdates  LockGroup = "descriptor_updates"
)

// VulkanLockPool hands out one mutex per lock group and one per queue
// family. The map lock is never held while the caller's function runs.
type VulkanLockPool struct {
	mu           sync.Mutex
	locks        map[LockGroup]*sync.Mutex
	queueMutexes map[uint32]*sync.Mutex
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) groupLock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	l, ok := vs.locks[group]
	if !ok {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	return l
}

func (vs *VulkanLockPool) queueLock(family uint32) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	l, ok := vs.queueMutexes[family]
	if !ok {
		l = &sync.Mutex{}
		vs.queueMutexes[family] = l
	}
	return l
}

func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.groupLock(group)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// SafeQueueCall serializes access to the queue of a family. Graphics and
// transfer may share one VkQueue, which must be externally synchronized.
func (vs *VulkanLockPool) SafeQueueCall(family uint32, fn func() error) error {
	l := vs.queueLock(family)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// SafeAllQueuesCall holds the lock of every listed family while fn runs.
// Locks are taken in ascending family order and duplicates are locked once.
func (vs *VulkanLockPool) SafeAllQueuesCall(families []uint32, fn func() error) error {
	unique := slices.Clone(families)
	slices.Sort(unique)
	unique = slices.Compact(unique)
	for _, family := range unique {
		l := vs.queueLock(family)
		l.Lock()
		defer l.Unlock()
	}
	return fn()
}
