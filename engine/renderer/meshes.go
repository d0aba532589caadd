package renderer

import (
	"sync"

	"github.com/spaghettifunk/vkshadow/engine/core"
	"github.com/spaghettifunk/vkshadow/engine/renderer/metadata"
)

// MeshList is the set of GPU resident meshes. The upload worker appends,
// the frame loop reads snapshots. A record is only appended once its
// buffers are fully uploaded.
type MeshList struct {
	mu      sync.RWMutex
	records []*metadata.MeshRecord
	sealed  bool
}

func NewMeshList() *MeshList {
	return &MeshList{
		records: make([]*metadata.MeshRecord, 0, 8),
	}
}

func (ml *MeshList) Append(record *metadata.MeshRecord) error {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	if ml.sealed {
		return core.ErrMeshListSealed
	}
	ml.records = append(ml.records, record)
	return nil
}

// Snapshot returns a copy of the list, safe to iterate while appends continue.
func (ml *MeshList) Snapshot() []*metadata.MeshRecord {
	ml.mu.RLock()
	defer ml.mu.RUnlock()
	out := make([]*metadata.MeshRecord, len(ml.records))
	copy(out, ml.records)
	return out
}

func (ml *MeshList) Len() int {
	ml.mu.RLock()
	defer ml.mu.RUnlock()
	return len(ml.records)
}

// Seal stops further appends. Called when the upload worker exits.
func (ml *MeshList) Seal() {
	ml.mu.Lock()
	ml.sealed = true
	ml.mu.Unlock()
}

func (ml *MeshList) Sealed() bool {
	ml.mu.RLock()
	defer ml.mu.RUnlock()
	return ml.sealed
}

// Drain seals the list and hands every record back for destruction.
func (ml *MeshList) Drain() []*metadata.MeshRecord {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	ml.sealed = true
	out := ml.records
	ml.records = nil
	return out
}
