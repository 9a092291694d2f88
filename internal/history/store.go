package history

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/playpool/tictactoe/internal/game"
	"github.com/playpool/tictactoe/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Store persists settled matches to the match_results audit table
type Store struct {
	db *sqlx.DB
}

// NewStore creates a store on an open database
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// RecordResult writes or updates the row for a settled match
func (s *Store) RecordResult(ctx context.Context, m game.SettledMatch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_results (
			match_id, stake_amount, player_x, player_o, result,
			winner_address, winner_symbol, report_status, report_error,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (match_id) DO UPDATE SET
			report_status = EXCLUDED.report_status,
			report_error = EXCLUDED.report_error`,
		m.MatchID, m.StakeAmount, m.PlayerX, m.PlayerO, string(m.Result),
		nullString(m.WinnerAddress), nullString(string(m.WinnerSymbol)),
		string(m.ReportStatus), nullString(m.ReportError),
		sql.NullTime{Time: m.StartedAt, Valid: !m.StartedAt.IsZero()}, m.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record match %s: %w", m.MatchID, err)
	}

	log.Printf("[HISTORY] Recorded match %s result=%s report=%s", m.MatchID, m.Result, m.ReportStatus)
	return nil
}

// ListRecent returns the most recently finished matches, newest first
func (s *Store) ListRecent(ctx context.Context, limit int) ([]models.MatchResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	results := []models.MatchResult{}
	err := s.db.SelectContext(ctx, &results, `
		SELECT match_id, stake_amount::text AS stake_amount, player_x, player_o, result,
			winner_address, winner_symbol, report_status, report_error,
			started_at, finished_at, created_at
		FROM match_results
		ORDER BY finished_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list match results: %w", err)
	}
	return results, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
