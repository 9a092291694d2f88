package game

import "time"

// Outbound event types sent to clients
const (
	EventHello        = "hello"
	EventQueued       = "queued"
	EventMatchFound   = "matchFound"
	EventMatchReady   = "matchReady"
	EventStatusUpdate = "statusUpdate"
	EventGameStart    = "gameStart"
	EventGameState    = "gameState"
	EventGameOver     = "gameOver"
	EventError        = "errorMsg"
)

// Event is a single outbound message for one connection
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type HelloData struct {
	SocketID string `json:"socketId"`
}

type QueuedData struct {
	StakeAmount string `json:"stakeAmount"`
}

type MatchFoundData struct {
	MatchID     string `json:"matchId"`
	StakeAmount string `json:"stakeAmount"`
	PlayerX     string `json:"playerX"`
	PlayerO     string `json:"playerO"`
}

type MatchReadyData struct {
	MatchID     string `json:"matchId"`
	StakeAmount string `json:"stakeAmount"`
}

type StatusUpdateData struct {
	Message string `json:"message"`
}

type GameStartData struct {
	MatchID     string `json:"matchId"`
	Next        Symbol `json:"next"`
	Board       Board  `json:"board"`
	StakeAmount string `json:"stakeAmount"`
}

// GameStateData carries a nil Next once the game has ended
type GameStateData struct {
	Board Board   `json:"board"`
	Next  *Symbol `json:"next"`
}

type GameOverData struct {
	MatchID       string `json:"matchId"`
	Result        string `json:"result"`
	WinnerAddress string `json:"winnerAddress,omitempty"`
	WinnerSymbol  Symbol `json:"winnerSymbol,omitempty"`
}

type ErrorData struct {
	Message string `json:"message"`
}

// ErrorEvent builds an errorMsg event
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Data: ErrorData{Message: message}}
}

// Lifecycle event types published to the operator feed
const (
	LifecycleMatchCreated   = "match_created"
	LifecycleStakesOpen     = "stakes_open"
	LifecycleGameStarted    = "game_started"
	LifecycleGameOver       = "game_over"
	LifecycleMatchAbandoned = "match_abandoned"
)

// Lifecycle describes a session transition for external observers
type Lifecycle struct {
	Type          string    `json:"type"`
	MatchID       string    `json:"matchId"`
	StakeAmount   string    `json:"stakeAmount"`
	PlayerX       string    `json:"playerX"`
	PlayerO       string    `json:"playerO"`
	Phase         Phase     `json:"phase"`
	WinnerAddress string    `json:"winnerAddress,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"at"`
}

// SettledMatch is the final record of a session that reached a terminal phase
type SettledMatch struct {
	MatchID       string
	StakeAmount   string
	PlayerX       string
	PlayerO       string
	Result        Phase
	WinnerAddress string
	WinnerSymbol  Symbol
	ReportStatus  ReportStatus
	ReportError   string
	StartedAt     time.Time
	FinishedAt    time.Time
}
