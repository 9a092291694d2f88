package game

// Phase represents where a session is in its lifecycle
type Phase string

const (
	PhaseCreated                   Phase = "CREATED"
	PhaseAwaitingChainRegistration Phase = "AWAITING_CHAIN_REGISTRATION"
	PhaseAwaitingStakes            Phase = "AWAITING_STAKES"
	PhasePlaying                   Phase = "PLAYING"
	PhaseWin                       Phase = "WIN"
	PhaseDraw                      Phase = "DRAW"
	PhaseForfeit                   Phase = "FORFEIT"
	PhaseAbandoned                 Phase = "ABANDONED"
)

// Terminal reports whether no further transitions are possible
func (p Phase) Terminal() bool {
	switch p {
	case PhaseWin, PhaseDraw, PhaseForfeit, PhaseAbandoned:
		return true
	}
	return false
}

// ReportStatus records what happened to the result report of a settled match
type ReportStatus string

const (
	ReportSubmitted ReportStatus = "submitted"
	ReportFailed    ReportStatus = "failed"
	ReportSkipped   ReportStatus = "skipped"
)
