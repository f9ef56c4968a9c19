package dedup

import (
	"hash/fnv"
	"sync"
)

// lockStripes is the number of stripes in the per-identifier lock table.
const lockStripes = 64

// uidLocks serializes dedup decisions per replica-independent identifier.
// Two concurrent submissions of the same UID must not both pass the identity
// layer and both attempt a create. Striping keeps the table bounded; distinct
// UIDs sharing a stripe only cost a little contention.
type uidLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *uidLocks) lock(uid string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(uid))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu
}
