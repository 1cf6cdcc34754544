// Package progress carries ordered snapshots from a running batch to any number of readers.
//
// A Stream is append-only. Publishing never blocks, and each Subscription keeps its own
// cursor, so a slow reader lags behind instead of losing snapshots or stalling the
// pipeline. Every reader sees the full sequence in publication order.
package progress

import (
	"context"
	"sync"

	"imagebatch/internal/models"
)

// Stream is an append-only, multi-reader sequence of snapshots
type Stream struct {
	mu     sync.RWMutex
	items  []models.Snapshot
	closed bool
	wake   chan struct{} // closed and replaced on every publish
}

// NewStream creates an empty open stream
func NewStream() *Stream {
	return &Stream{wake: make(chan struct{})}
}

// Publish appends a snapshot and wakes waiting readers. Returns false once the stream is closed.
func (s *Stream) Publish(snap models.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.items = append(s.items, snap)
	close(s.wake)
	s.wake = make(chan struct{})
	return true
}

// Close marks the end of the sequence. Readers drain what is left and then stop.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.wake)
}

// Closed reports whether Close has been called
func (s *Stream) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Len returns the number of published snapshots
func (s *Stream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Last returns the most recent snapshot, if any
func (s *Stream) Last() (models.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.items) == 0 {
		return models.Snapshot{}, false
	}
	return s.items[len(s.items)-1], true
}

// Items returns a copy of everything published so far
func (s *Stream) Items() []models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Snapshot, len(s.items))
	copy(out, s.items)
	return out
}

// Subscribe returns a reader positioned at the first snapshot
func (s *Stream) Subscribe() *Subscription {
	return &Subscription{stream: s}
}

// at returns item i, or a channel to wait on when it does not exist yet
func (s *Stream) at(i int) (snap models.Snapshot, ok bool, done bool, wait <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < len(s.items) {
		return s.items[i], true, false, nil
	}
	if s.closed {
		return models.Snapshot{}, false, true, nil
	}
	return models.Snapshot{}, false, false, s.wake
}

// Subscription reads a Stream from its own cursor. It is not safe for concurrent use;
// give each reader its own Subscription.
type Subscription struct {
	stream *Stream
	next   int
}

// Next blocks until the next snapshot is available. It returns false when the stream is
// closed and fully drained, or when ctx is done.
func (sub *Subscription) Next(ctx context.Context) (models.Snapshot, bool) {
	for {
		snap, ok, done, wait := sub.stream.at(sub.next)
		if ok {
			sub.next++
			return snap, true
		}
		if done {
			return models.Snapshot{}, false
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return models.Snapshot{}, false
		}
	}
}

// Channel adapts the subscription to a channel that is closed when the stream ends or ctx is done
func (sub *Subscription) Channel(ctx context.Context) <-chan models.Snapshot {
	out := make(chan models.Snapshot)
	go func() {
		defer close(out)
		for {
			snap, ok := sub.Next(ctx)
			if !ok {
				return
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
