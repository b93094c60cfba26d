// internal/server/queue.go
package server

import (
	"container/heap"
	"time"

	"github.com/google/uuid"
)

// timerEntry is a pending timer delivery for a lobby. Entries whose lobby
// has been destroyed are discarded when popped.
type timerEntry struct {
	at      time.Time
	gameID  uuid.UUID
	eventID uuid.UUID
	seq     uint64
}

// timerHeap is a min-heap on (at, seq). The insertion sequence number makes
// ordering deterministic for equal deadlines.
type timerHeap []timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if !h[i].at.Equal(h[j].at) {
		return h[i].at.Before(h[j].at)
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) { *h = append(*h, x.(timerEntry)) }

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// eventQueue holds the pending timer deliveries of all lobbies, ordered by
// deadline. Owned by the runtime loop; not safe for concurrent use.
type eventQueue struct {
	entries timerHeap
	nextSeq uint64
}

func newEventQueue() *eventQueue {
	return &eventQueue{}
}

// Add schedules a single-shot delivery of (gameID, eventID) at the deadline.
func (q *eventQueue) Add(gameID, eventID uuid.UUID, at time.Time) {
	heap.Push(&q.entries, timerEntry{
		at:      at,
		gameID:  gameID,
		eventID: eventID,
		seq:     q.nextSeq,
	})
	q.nextSeq++
}

// NextDeadline returns the earliest pending deadline, used to arm the
// loop's timer wait.
func (q *eventQueue) NextDeadline() (time.Time, bool) {
	if len(q.entries) == 0 {
		return time.Time{}, false
	}
	return q.entries[0].at, true
}

// PopDue pops the earliest entry if its deadline is at or before now.
func (q *eventQueue) PopDue(now time.Time) (timerEntry, bool) {
	if len(q.entries) == 0 || q.entries[0].at.After(now) {
		return timerEntry{}, false
	}
	return heap.Pop(&q.entries).(timerEntry), true
}

// Len returns the number of pending entries.
func (q *eventQueue) Len() int { return len(q.entries) }
