package game

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrSelfMatch is returned when the only compatible opponent is the caller's own address
var ErrSelfMatch = errors.New("cannot match with yourself")

// WaitingEntry represents a client waiting in a stake bucket
type WaitingEntry struct {
	Address      string
	ConnectionID string
	StakeKey     string
	EnqueuedAt   time.Time
}

// Pairing is the result of Enqueue. Opponent is only set when Paired is true.
type Pairing struct {
	Paired   bool
	Opponent WaitingEntry
}

// Queue holds one FIFO of waiting clients per stake key
type Queue struct {
	buckets map[string][]WaitingEntry
	now     func() time.Time
	mu      sync.Mutex
}

// NewQueue creates an empty matchmaking queue
func NewQueue() *Queue {
	return &Queue{
		buckets: make(map[string][]WaitingEntry),
		now:     time.Now,
	}
}

// Enqueue pairs the caller with the longest-waiting entry of another connection
// in the same bucket, or appends the caller when there is none.
func (q *Queue) Enqueue(address, stakeKey, connectionID string) (Pairing, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	bucket := q.buckets[stakeKey]
	for i, entry := range bucket {
		if entry.ConnectionID == connectionID {
			continue
		}
		if strings.EqualFold(entry.Address, address) {
			return Pairing{}, ErrSelfMatch
		}
		rest := make([]WaitingEntry, 0, len(bucket)-1)
		for j, other := range bucket {
			if j == i || other.ConnectionID == connectionID {
				continue
			}
			rest = append(rest, other)
		}
		if len(rest) == 0 {
			delete(q.buckets, stakeKey)
		} else {
			q.buckets[stakeKey] = rest
		}
		return Pairing{Paired: true, Opponent: entry}, nil
	}

	for _, entry := range bucket {
		if entry.ConnectionID == connectionID {
			// already waiting here
			return Pairing{}, nil
		}
	}

	q.buckets[stakeKey] = append(bucket, WaitingEntry{
		Address:      address,
		ConnectionID: connectionID,
		StakeKey:     stakeKey,
		EnqueuedAt:   q.now(),
	})
	return Pairing{}, nil
}

// Remove drops a connection from one bucket. Safe to call repeatedly.
func (q *Queue) Remove(stakeKey, connectionID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(stakeKey, connectionID)
}

// RemoveConnection drops a connection from every bucket and returns how many entries went away
func (q *Queue) RemoveConnection(connectionID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for stake := range q.buckets {
		if q.removeLocked(stake, connectionID) {
			removed++
		}
	}
	return removed
}

func (q *Queue) removeLocked(stakeKey, connectionID string) bool {
	bucket, ok := q.buckets[stakeKey]
	if !ok {
		return false
	}
	for i, entry := range bucket {
		if entry.ConnectionID == connectionID {
			q.buckets[stakeKey] = append(bucket[:i:i], bucket[i+1:]...)
			if len(q.buckets[stakeKey]) == 0 {
				delete(q.buckets, stakeKey)
			}
			return true
		}
	}
	return false
}

// Sizes returns the number of waiting entries per stake key
func (q *Queue) Sizes() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	sizes := make(map[string]int, len(q.buckets))
	for stake, bucket := range q.buckets {
		sizes[stake] = len(bucket)
	}
	return sizes
}

// AssignSymbols gives X to the lexicographically smaller lower-cased address.
func AssignSymbols(a, b WaitingEntry) (x, o WaitingEntry) {
	if strings.ToLower(a.Address) <= strings.ToLower(b.Address) {
		return a, b
	}
	return b, a
}
