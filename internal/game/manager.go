package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrAlreadyInMatch = errors.New("already in a match")
	ErrUnknownMatch   = errors.New("unknown match")
	ErrNotPlaying     = errors.New("match is not in progress")
	ErrNotYourTurn    = errors.New("not your turn")
)

// Notifier delivers events to a single connection. Unknown connections are ignored.
type Notifier interface {
	Send(connectionID string, ev Event)
}

// Reconciler bridges a session to the external ledger
type Reconciler interface {
	RegisterMatch(ctx context.Context, matchID, playerX, playerO, stake string) error
	AwaitConfirmation(ctx context.Context, matchID string) error
	AwaitBothStaked(ctx context.Context, matchID string, progress func(staked int)) error
	ReportResult(ctx context.Context, matchID, winner string) error
}

// ResultRecorder stores settled matches for operators
type ResultRecorder interface {
	RecordResult(ctx context.Context, m SettledMatch) error
}

// LifecycleSink receives session transitions. Publish must not block.
type LifecycleSink interface {
	Publish(ev Lifecycle)
}

// Options configures optional collaborators of the Manager
type Options struct {
	Recorder      ResultRecorder
	Sink          LifecycleSink
	ReportTimeout time.Duration
	InboxSize     int
}

// Manager pairs clients and owns every live session
type Manager struct {
	queue      *Queue
	notifier   Notifier
	reconciler Reconciler
	recorder   ResultRecorder
	sink       LifecycleSink

	reportTimeout time.Duration
	inboxSize     int
	now           func() time.Time

	sessions map[string]*Session // matchID -> session
	byConn   map[string]string   // connectionID -> matchID
	mu       sync.RWMutex
	settling sync.WaitGroup
}

// NewManager creates a Manager. notifier and reconciler are required.
func NewManager(notifier Notifier, reconciler Reconciler, opts Options) *Manager {
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = 15 * time.Second
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 32
	}
	return &Manager{
		queue:         NewQueue(),
		notifier:      notifier,
		reconciler:    reconciler,
		recorder:      opts.Recorder,
		sink:          opts.Sink,
		reportTimeout: opts.ReportTimeout,
		inboxSize:     opts.InboxSize,
		now:           time.Now,
		sessions:      make(map[string]*Session),
		byConn:        make(map[string]string),
	}
}

// Bounds match the match_results columns: VARCHAR(64) addresses and
// NUMERIC(78,18) stakes.
const maxAddressLength = 64

var stakePattern = regexp.MustCompile(`^[0-9]{1,60}(\.[0-9]{1,18})?$`)

// NormalizeStake validates a positive decimal stake and returns its bucket key
func NormalizeStake(raw string) (string, error) {
	stake := strings.TrimSpace(raw)
	if !stakePattern.MatchString(stake) || strings.Trim(stake, "0.") == "" {
		return "", fmt.Errorf("%w: stake %q", ErrInvalidRequest, raw)
	}
	return stake, nil
}

// FindMatch queues the connection or pairs it with a waiting opponent
func (m *Manager) FindMatch(connectionID, address, stakeAmount string) error {
	addr := strings.TrimSpace(address)
	stake, err := NormalizeStake(stakeAmount)
	if addr == "" || len(addr) > maxAddressLength || err != nil {
		m.notifier.Send(connectionID, ErrorEvent("Invalid matchmaking payload"))
		return ErrInvalidRequest
	}

	m.mu.Lock()
	if _, busy := m.byConn[connectionID]; busy {
		m.mu.Unlock()
		m.notifier.Send(connectionID, ErrorEvent("You are already in a match"))
		return ErrAlreadyInMatch
	}

	pairing, err := m.queue.Enqueue(addr, stake, connectionID)
	if err != nil {
		m.mu.Unlock()
		log.Printf("[MATCHMAKING] Rejected self-match for %s at stake %s", addr, stake)
		m.notifier.Send(connectionID, ErrorEvent("Cannot match with yourself. Use different wallets."))
		return err
	}
	if !pairing.Paired {
		m.mu.Unlock()
		log.Printf("[MATCHMAKING] %s queued at stake %s (conn=%s)", addr, stake, connectionID)
		m.notifier.Send(connectionID, Event{Type: EventQueued, Data: QueuedData{StakeAmount: stake}})
		return nil
	}

	me := WaitingEntry{Address: addr, ConnectionID: connectionID, StakeKey: stake}
	xEntry, oEntry := AssignSymbols(pairing.Opponent, me)

	now := m.now()
	matchID := NewMatchID(pairing.Opponent.Address, addr, stake, now)
	for m.sessions[matchID] != nil {
		matchID = NewMatchID(pairing.Opponent.Address, addr, stake, now)
	}

	s := newSession(matchID, stake,
		PlayerRef{Address: xEntry.Address, ConnectionID: xEntry.ConnectionID},
		PlayerRef{Address: oEntry.Address, ConnectionID: oEntry.ConnectionID},
		now, m.inboxSize)
	m.sessions[matchID] = s
	m.byConn[xEntry.ConnectionID] = matchID
	m.byConn[oEntry.ConnectionID] = matchID

	// a paired connection may still wait in other stake buckets
	m.queue.RemoveConnection(xEntry.ConnectionID)
	m.queue.RemoveConnection(oEntry.ConnectionID)
	m.mu.Unlock()

	log.Printf("[MATCHMAKING] Match %s created: X=%s O=%s stake=%s", matchID, xEntry.Address, oEntry.Address, stake)

	go s.run()
	s.submit(func() { m.open(s) })
	return nil
}

// MakeMove applies a move on behalf of connectionID. It waits for the
// session goroutine and returns the rejection reason, if any.
func (m *Manager) MakeMove(connectionID, matchID string, index int, address string) error {
	s := m.lookup(matchID)
	if s == nil {
		return m.reject(connectionID, ErrUnknownMatch)
	}

	errc := make(chan error, 1)
	if !s.submit(func() { errc <- m.applyMove(s, connectionID, index, address) }) {
		return m.reject(connectionID, ErrNotPlaying)
	}

	select {
	case err := <-errc:
		return err
	case <-s.Done():
		select {
		case err := <-errc:
			return err
		default:
			return ErrNotPlaying
		}
	}
}

// Disconnect removes the connection from matchmaking and forfeits or
// abandons any session it belongs to.
func (m *Manager) Disconnect(connectionID string) {
	m.mu.Lock()
	removed := m.queue.RemoveConnection(connectionID)
	var s *Session
	if matchID, ok := m.byConn[connectionID]; ok {
		s = m.sessions[matchID]
	}
	m.mu.Unlock()

	if removed > 0 {
		log.Printf("[MATCHMAKING] conn=%s left %d queue(s)", connectionID, removed)
	}
	if s == nil {
		return
	}
	s.submit(func() { m.handleDisconnect(s, connectionID) })
}

// Session returns the live session for matchID, or nil
func (m *Manager) Session(matchID string) *Session {
	return m.lookup(matchID)
}

// Sessions returns snapshots of all live sessions, oldest first
func (m *Manager) Sessions() []SessionInfo {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.Before(infos[j].CreatedAt) })
	return infos
}

// Stats summarizes matchmaking and session load
type Stats struct {
	Queued         map[string]int `json:"queued"`
	ActiveSessions int            `json:"activeSessions"`
	Phases         map[Phase]int  `json:"phases"`
}

func (m *Manager) Stats() Stats {
	infos := m.Sessions()
	phases := make(map[Phase]int)
	for _, info := range infos {
		phases[info.Phase]++
	}
	return Stats{
		Queued:         m.queue.Sizes(),
		ActiveSessions: len(infos),
		Phases:         phases,
	}
}

// Close ends every live session and waits for pending result reports.
// Sessions that already opened staking get an audit row flagged for payout
// follow-up; earlier ones are abandoned.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()

	for _, s := range list {
		s := s
		s.submit(func() { m.shutdown(s) })
	}
	// every settle goroutine is started by the time its session is done
	for _, s := range list {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	finished := make(chan struct{})
	go func() {
		m.settling.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) lookup(matchID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[matchID]
}

// The methods below run on the session goroutine.

func (m *Manager) open(s *Session) {
	if s.phase != PhaseCreated {
		return
	}
	s.setPhase(PhaseAwaitingChainRegistration)
	m.broadcast(s, Event{Type: EventMatchFound, Data: MatchFoundData{
		MatchID:     s.MatchID,
		StakeAmount: s.StakeKey,
		PlayerX:     s.PlayerX.Address,
		PlayerO:     s.PlayerO.Address,
	}})
	m.publish(s, LifecycleMatchCreated, "", "")
	go m.reconcile(s)
}

func (m *Manager) chainStatus(s *Session, message string) {
	if s.phase != PhaseAwaitingChainRegistration {
		return
	}
	m.broadcast(s, Event{Type: EventStatusUpdate, Data: StatusUpdateData{Message: message}})
}

func (m *Manager) openStakes(s *Session) {
	if s.phase != PhaseAwaitingChainRegistration {
		return
	}
	s.setPhase(PhaseAwaitingStakes)
	log.Printf("[SESSION] Match %s confirmed on-chain, awaiting stakes", s.MatchID)
	m.broadcast(s, Event{Type: EventStatusUpdate, Data: StatusUpdateData{Message: "Match confirmed on-chain! You can now stake your tokens."}})
	m.broadcast(s, Event{Type: EventMatchReady, Data: MatchReadyData{MatchID: s.MatchID, StakeAmount: s.StakeKey}})
	m.publish(s, LifecycleStakesOpen, "", "")
}

func (m *Manager) stakeProgress(s *Session, staked int) {
	if s.phase != PhaseAwaitingStakes || staked <= s.staked {
		return
	}
	s.staked = staked
	m.broadcast(s, Event{Type: EventStatusUpdate, Data: StatusUpdateData{
		Message: fmt.Sprintf("Waiting for players to stake (%d/2)", staked),
	}})
}

func (m *Manager) startGame(s *Session) {
	if s.phase != PhaseAwaitingStakes {
		return
	}
	s.setBoard(Board{}, X)
	s.setPhase(PhasePlaying)
	s.startedAt = m.now()
	log.Printf("[SESSION] Both players staked, starting match %s", s.MatchID)
	m.broadcast(s, Event{Type: EventGameStart, Data: GameStartData{
		MatchID:     s.MatchID,
		Next:        X,
		Board:       s.board,
		StakeAmount: s.StakeKey,
	}})
	m.publish(s, LifecycleGameStarted, "", "")
}

func (m *Manager) applyMove(s *Session, connectionID string, index int, address string) error {
	if s.phase != PhasePlaying {
		return m.reject(connectionID, ErrNotPlaying)
	}

	mover := s.next
	slot := s.slot(mover)
	if slot.ConnectionID != connectionID || !strings.EqualFold(strings.TrimSpace(address), slot.Address) {
		return m.reject(connectionID, ErrNotYourTurn)
	}

	board, err := s.board.Apply(index, mover)
	if err != nil {
		return m.reject(connectionID, err)
	}

	outcome := Evaluate(board)
	switch outcome.Kind {
	case Win:
		s.setBoard(board, Empty)
		m.broadcast(s, Event{Type: EventGameState, Data: GameStateData{Board: board}})
		m.finish(s, PhaseWin, outcome.Winner)
	case Draw:
		s.setBoard(board, Empty)
		m.broadcast(s, Event{Type: EventGameState, Data: GameStateData{Board: board}})
		m.finish(s, PhaseDraw, Empty)
	default:
		next := mover.Other()
		s.setBoard(board, next)
		m.broadcast(s, Event{Type: EventGameState, Data: GameStateData{Board: board, Next: &next}})
	}
	return nil
}

func (m *Manager) handleDisconnect(s *Session, connectionID string) {
	sym := s.symbolFor(connectionID)
	if sym == Empty {
		return
	}

	switch s.phase {
	case PhaseAwaitingStakes, PhasePlaying:
		log.Printf("[SESSION] %s disconnected from match %s (%s), forfeiting", s.slot(sym).Address, s.MatchID, s.phase)
		m.finish(s, PhaseForfeit, sym.Other())
	case PhaseCreated, PhaseAwaitingChainRegistration:
		m.abandon(s, "Opponent disconnected before the match was confirmed. Please find a new match.")
	}
}

// finish moves the session into a terminal game phase and hands result
// reporting to a tracked goroutine.
func (m *Manager) finish(s *Session, phase Phase, winner Symbol) {
	if s.phase.Terminal() {
		return
	}
	s.setPhase(phase)
	s.cancel()
	s.closing = true
	m.release(s)

	settled := SettledMatch{
		MatchID:     s.MatchID,
		StakeAmount: s.StakeKey,
		PlayerX:     s.PlayerX.Address,
		PlayerO:     s.PlayerO.Address,
		Result:      phase,
		StartedAt:   s.startedAt,
		FinishedAt:  m.now(),
	}
	over := GameOverData{MatchID: s.MatchID, Result: string(phase)}
	if winner != Empty {
		settled.WinnerSymbol = winner
		settled.WinnerAddress = s.slot(winner).Address
		over.WinnerSymbol = winner
		over.WinnerAddress = settled.WinnerAddress
	}

	log.Printf("[SESSION] Match %s over: result=%s winner=%s", s.MatchID, phase, settled.WinnerAddress)
	m.broadcast(s, Event{Type: EventGameOver, Data: over})
	m.publish(s, LifecycleGameOver, settled.WinnerAddress, "")

	m.settling.Add(1)
	go m.settle(s, settled)
}

// abandon tears the session down without a result. Staking never opened,
// so there is nothing to settle.
func (m *Manager) abandon(s *Session, reason string) {
	if s.phase.Terminal() {
		return
	}
	s.setPhase(PhaseAbandoned)
	s.cancel()
	s.closing = true
	m.release(s)
	m.remove(s)

	log.Printf("[SESSION] Match %s abandoned: %s", s.MatchID, reason)
	m.broadcast(s, ErrorEvent(reason))
	m.publish(s, LifecycleMatchAbandoned, "", reason)
}

const shutdownMessage = "Server is shutting down. Please find a new match later."

func (m *Manager) shutdown(s *Session) {
	switch s.phase {
	case PhaseAwaitingStakes, PhasePlaying:
		m.interrupt(s, shutdownMessage)
	default:
		m.abandon(s, shutdownMessage)
	}
}

// interrupt ends a session whose stakes may already sit on the ledger. There
// is no winner to report, so the audit row is marked failed for manual payout.
func (m *Manager) interrupt(s *Session, reason string) {
	if s.phase.Terminal() {
		return
	}
	was := s.phase
	s.setPhase(PhaseAbandoned)
	s.cancel()
	s.closing = true
	m.release(s)

	log.Printf("[RESULT] ALERT: match %s interrupted while %s, stakes need manual settlement", s.MatchID, was)
	m.broadcast(s, ErrorEvent(reason))
	m.publish(s, LifecycleMatchAbandoned, "", reason)

	m.settling.Add(1)
	go m.settle(s, SettledMatch{
		MatchID:      s.MatchID,
		StakeAmount:  s.StakeKey,
		PlayerX:      s.PlayerX.Address,
		PlayerO:      s.PlayerO.Address,
		Result:       PhaseAbandoned,
		ReportStatus: ReportFailed,
		ReportError:  fmt.Sprintf("server shutdown while %s", was),
		StartedAt:    s.startedAt,
		FinishedAt:   m.now(),
	})
}

func (m *Manager) settle(s *Session, settled SettledMatch) {
	defer m.settling.Done()
	defer m.remove(s)

	switch {
	case settled.ReportStatus != "":
		// decided by the caller, nothing to submit
	case settled.WinnerAddress != "":
		ctx, cancel := context.WithTimeout(context.Background(), m.reportTimeout)
		err := m.reconciler.ReportResult(ctx, settled.MatchID, settled.WinnerAddress)
		cancel()
		if err != nil {
			log.Printf("[RESULT] ALERT: result for match %s (winner=%s) not accepted: %v", settled.MatchID, settled.WinnerAddress, err)
			settled.ReportStatus = ReportFailed
			settled.ReportError = err.Error()
		} else {
			log.Printf("[RESULT] Result committed for match %s (winner=%s)", settled.MatchID, settled.WinnerAddress)
			settled.ReportStatus = ReportSubmitted
		}
	default:
		settled.ReportStatus = ReportSkipped
	}

	if m.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.reportTimeout)
		if err := m.recorder.RecordResult(ctx, settled); err != nil {
			log.Printf("[RESULT] Failed to record match %s: %v", settled.MatchID, err)
		}
		cancel()
	}
}

// reconcile drives the chain side of a session. It runs on its own
// goroutine and reports back through the session inbox.
func (m *Manager) reconcile(s *Session) {
	ctx := s.ctx

	if err := m.reconciler.RegisterMatch(ctx, s.MatchID, s.PlayerX.Address, s.PlayerO.Address, s.StakeKey); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("[CHAIN] Error creating match %s on-chain: %v", s.MatchID, err)
		s.submit(func() { m.abandon(s, "Failed to create match on-chain. Please find a new match.") })
		return
	}
	s.submit(func() { m.chainStatus(s, "Match created on-chain. Waiting for confirmation...") })

	if err := m.reconciler.AwaitConfirmation(ctx, s.MatchID); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("[CHAIN] Error confirming match %s: %v", s.MatchID, err)
		s.submit(func() { m.abandon(s, "Failed to confirm match on-chain. Please try again.") })
		return
	}
	s.submit(func() { m.openStakes(s) })

	err := m.reconciler.AwaitBothStaked(ctx, s.MatchID, func(staked int) {
		s.submit(func() { m.stakeProgress(s, staked) })
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[CHAIN] Stake polling for match %s stopped: %v", s.MatchID, err)
		}
		return
	}
	s.submit(func() { m.startGame(s) })
}

func (m *Manager) reject(connectionID string, err error) error {
	m.notifier.Send(connectionID, ErrorEvent("Move rejected: "+err.Error()))
	return err
}

func (m *Manager) broadcast(s *Session, ev Event) {
	m.notifier.Send(s.PlayerX.ConnectionID, ev)
	m.notifier.Send(s.PlayerO.ConnectionID, ev)
}

func (m *Manager) publish(s *Session, kind, winner, reason string) {
	if m.sink == nil {
		return
	}
	m.sink.Publish(Lifecycle{
		Type:          kind,
		MatchID:       s.MatchID,
		StakeAmount:   s.StakeKey,
		PlayerX:       s.PlayerX.Address,
		PlayerO:       s.PlayerO.Address,
		Phase:         s.phase,
		WinnerAddress: winner,
		Reason:        reason,
		At:            m.now(),
	})
}

// release frees both connections so they can queue again
func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conn := range []string{s.PlayerX.ConnectionID, s.PlayerO.ConnectionID} {
		if m.byConn[conn] == s.MatchID {
			delete(m.byConn, conn)
		}
	}
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.MatchID] == s {
		delete(m.sessions, s.MatchID)
	}
}
