package game

import (
	"context"
	"sync"
	"time"
)

// PlayerRef points at a participant's connection without owning it
type PlayerRef struct {
	Address      string
	ConnectionID string
}

// Session is one two-player match. All mutations run on the session's own
// goroutine (see run); mu only guards the fields read by Info.
type Session struct {
	MatchID   string
	StakeKey  string
	PlayerX   PlayerRef
	PlayerO   PlayerRef
	CreatedAt time.Time

	board     Board
	next      Symbol
	phase     Phase
	staked    int
	startedAt time.Time
	closing   bool

	// cancel stops in-flight reconciliation for this match
	ctx    context.Context
	cancel context.CancelFunc

	inbox chan func()
	done  chan struct{}
	mu    sync.RWMutex
}

// SessionInfo is a read-only snapshot of a session
type SessionInfo struct {
	MatchID     string    `json:"matchId"`
	StakeAmount string    `json:"stakeAmount"`
	PlayerX     string    `json:"playerX"`
	PlayerO     string    `json:"playerO"`
	Phase       Phase     `json:"phase"`
	Board       Board     `json:"board"`
	Next        Symbol    `json:"next,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newSession(matchID, stakeKey string, x, o PlayerRef, now time.Time, inboxSize int) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		MatchID:   matchID,
		StakeKey:  stakeKey,
		PlayerX:   x,
		PlayerO:   o,
		CreatedAt: now,
		phase:     PhaseCreated,
		ctx:       ctx,
		cancel:    cancel,
		inbox:     make(chan func(), inboxSize),
		done:      make(chan struct{}),
	}
}

// run processes the inbox until the session reaches a terminal phase.
// Work still buffered at that point is executed afterwards so waiters are not
// stranded; every handler re-checks the phase.
func (s *Session) run() {
	for fn := range s.inbox {
		fn()
		if s.closing {
			close(s.done)
			s.drain()
			return
		}
	}
}

func (s *Session) drain() {
	for {
		select {
		case fn := <-s.inbox:
			fn()
		default:
			return
		}
	}
}

// submit queues fn on the session goroutine. It returns false once the
// session has shut down.
func (s *Session) submit(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Done is closed when the session stops accepting work
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) slot(sym Symbol) PlayerRef {
	if sym == O {
		return s.PlayerO
	}
	return s.PlayerX
}

func (s *Session) symbolFor(connectionID string) Symbol {
	switch connectionID {
	case s.PlayerX.ConnectionID:
		return X
	case s.PlayerO.ConnectionID:
		return O
	}
	return Empty
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Session) setBoard(b Board, next Symbol) {
	s.mu.Lock()
	s.board = b
	s.next = next
	s.mu.Unlock()
}

// Info returns a consistent snapshot
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionInfo{
		MatchID:     s.MatchID,
		StakeAmount: s.StakeKey,
		PlayerX:     s.PlayerX.Address,
		PlayerO:     s.PlayerO.Address,
		Phase:       s.phase,
		Board:       s.board,
		Next:        s.next,
		CreatedAt:   s.CreatedAt,
	}
}
