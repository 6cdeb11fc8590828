// this code is from https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package buffer

import (
	"container/list"
	"sync"
)

// FrameID is the type for frame id
type FrameID int32

// LRUReplacer implements the least-recently-used victim selection policy
// over the set of unpinned frames. Insert (a frame was unpinned), Victim,
// Erase (a frame was deleted outright) and Size all run in O(1) thanks to
// the hashmap-of-iterators over a doubly linked list: the list orders
// frames from most- to least-recently-unpinned, and the map gives direct
// access to a frame's list node so Erase and a repeat Insert don't have to
// scan.
type LRUReplacer struct {
	mu      sync.Mutex
	entries *list.List // front = most recently unpinned, back = victim
	index   map[FrameID]*list.Element
}

// NewLRUReplacer instantiates a new LRU replacer. numPages is the buffer
// pool's frame count, used only to presize the index map.
func NewLRUReplacer(numPages uint32) *LRUReplacer {
	return &LRUReplacer{
		entries: list.New(),
		index:   make(map[FrameID]*list.Element, numPages),
	}
}

// Insert records that frame id became a victim candidate, i.e. it was
// unpinned. Re-inserting an already-tracked frame moves it to the
// most-recently-unpinned position.
func (r *LRUReplacer) Insert(id FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.index[id]; ok {
		r.entries.MoveToFront(elem)
		return
	}
	r.index[id] = r.entries.PushFront(id)
}

// Victim removes the least-recently-unpinned frame and returns it. Returns
// (0, false) if no frame is a victim candidate.
func (r *LRUReplacer) Victim() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	back := r.entries.Back()
	if back == nil {
		return 0, false
	}
	id := back.Value.(FrameID)
	r.entries.Remove(back)
	delete(r.index, id)
	return id, true
}

// Erase removes id from victim consideration, e.g. because it was just
// pinned. Returns true if id was tracked.
func (r *LRUReplacer) Erase(id FrameID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.index[id]
	if !ok {
		return false
	}
	r.entries.Remove(elem)
	delete(r.index, id)
	return true
}

// Size returns the number of frames currently eligible for eviction.
func (r *LRUReplacer) Size() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint32(r.entries.Len())
}
