package models

import (
	"database/sql"
	"time"
)

// MatchResult is one settled match in the audit log
type MatchResult struct {
	MatchID       string         `db:"match_id" json:"match_id"`
	StakeAmount   string         `db:"stake_amount" json:"stake_amount"`
	PlayerX       string         `db:"player_x" json:"player_x"`
	PlayerO       string         `db:"player_o" json:"player_o"`
	Result        string         `db:"result" json:"result"`
	WinnerAddress sql.NullString `db:"winner_address" json:"winner_address,omitempty"`
	WinnerSymbol  sql.NullString `db:"winner_symbol" json:"winner_symbol,omitempty"`
	ReportStatus  string         `db:"report_status" json:"report_status"`
	ReportError   sql.NullString `db:"report_error" json:"report_error,omitempty"`
	StartedAt     sql.NullTime   `db:"started_at" json:"started_at,omitempty"`
	FinishedAt    time.Time      `db:"finished_at" json:"finished_at"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}
