package core

import (
	"sync"
)

// SongQueue holds the tracks waiting to be played, oldest first.
// A fresh request resets the queue; results of an abandoned request that arrive
// later are appended rather than rejected, since the server cannot be told to cancel.
type SongQueue struct {
	mutex               sync.RWMutex
	items               []TrackRef
	waitingForFirstSong bool
}

func NewSongQueue() *SongQueue {
	return &SongQueue{
		items:               make([]TrackRef, 0),
		waitingForFirstSong: true,
	}
}

// Reset drops every pending track and marks the queue as waiting for its first song.
func (q *SongQueue) Reset() {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.items = q.items[:0]
	q.waitingForFirstSong = true
}

// Enqueue appends tracks in order.
func (q *SongQueue) Enqueue(tracks ...TrackRef) {
	if len(tracks) == 0 {
		return
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.items = append(q.items, tracks...)
}

// TryDequeue removes and returns the head of the queue.
func (q *SongQueue) TryDequeue() (TrackRef, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if len(q.items) == 0 {
		return TrackRef{}, false
	}

	head := q.items[0]
	q.items = q.items[1:]
	return head, true
}

// ClaimFirstSong clears the waiting flag and reports whether it was set.
func (q *SongQueue) ClaimFirstSong() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if !q.waitingForFirstSong {
		return false
	}
	q.waitingForFirstSong = false
	return true
}

func (q *SongQueue) WaitingForFirstSong() bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return q.waitingForFirstSong
}

func (q *SongQueue) Len() int {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	return len(q.items)
}

// Items returns a copy of the pending tracks.
func (q *SongQueue) Items() []TrackRef {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	items := make([]TrackRef, len(q.items))
	copy(items, q.items)
	return items
}
