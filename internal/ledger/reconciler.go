package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var (
	ErrRegistrationFailed  = errors.New("chain registration failed")
	ErrConfirmationTimeout = errors.New("chain confirmation timed out")
	ErrResultReportFailed  = errors.New("chain result report failed")
)

// Ledger is the subset of the ledger API the reconciler needs
type Ledger interface {
	StartMatch(ctx context.Context, req StartMatchRequest) error
	MatchSummary(ctx context.Context, matchID string) (*MatchSummary, error)
	SubmitResult(ctx context.Context, matchID, winner string) error
}

// Policy bounds retries and polling against the ledger
type Policy struct {
	RegisterAttempts    int
	RegisterBackoffStep time.Duration
	ConfirmAttempts     int
	PollInterval        time.Duration
}

// DefaultPolicy returns the production retry bounds
func DefaultPolicy() Policy {
	return Policy{
		RegisterAttempts:    3,
		RegisterBackoffStep: 3 * time.Second,
		ConfirmAttempts:     15,
		PollInterval:        3 * time.Second,
	}
}

// Reconciler keeps a session in step with the ledger
type Reconciler struct {
	ledger Ledger
	policy Policy
}

// NewReconciler creates a reconciler. Zero policy fields take their defaults.
func NewReconciler(l Ledger, p Policy) *Reconciler {
	def := DefaultPolicy()
	if p.RegisterAttempts <= 0 {
		p.RegisterAttempts = def.RegisterAttempts
	}
	if p.RegisterBackoffStep <= 0 {
		p.RegisterBackoffStep = def.RegisterBackoffStep
	}
	if p.ConfirmAttempts <= 0 {
		p.ConfirmAttempts = def.ConfirmAttempts
	}
	if p.PollInterval <= 0 {
		p.PollInterval = def.PollInterval
	}
	return &Reconciler{ledger: l, policy: p}
}

// RegisterMatch creates the match on the ledger, retrying with linear backoff
func (r *Reconciler) RegisterMatch(ctx context.Context, matchID, playerX, playerO, stake string) error {
	req := StartMatchRequest{MatchID: matchID, Player1: playerX, Player2: playerO, Stake: stake}

	attempt := 0
	err := retry(ctx, r.policy.RegisterAttempts, &linearBackOff{step: r.policy.RegisterBackoffStep}, func() error {
		attempt++
		err := r.ledger.StartMatch(ctx, req)
		if err != nil && ctx.Err() == nil {
			log.Printf("[CHAIN] Create match %s attempt %d/%d failed: %v", matchID, attempt, r.policy.RegisterAttempts, err)
		}
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	log.Printf("[CHAIN] Match %s created on-chain", matchID)
	return nil
}

var errNotReady = errors.New("match not ready")

// AwaitConfirmation polls the ledger until the match is open for staking.
// A match that is already staked also counts as confirmed.
func (r *Reconciler) AwaitConfirmation(ctx context.Context, matchID string) error {
	attempt := 0
	err := retry(ctx, r.policy.ConfirmAttempts, backoff.NewConstantBackOff(r.policy.PollInterval), func() error {
		attempt++
		summary, err := r.ledger.MatchSummary(ctx, matchID)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[CHAIN] Confirmation check %d/%d for match %s failed: %v", attempt, r.policy.ConfirmAttempts, matchID, err)
			}
			return err
		}
		if !summary.Exists {
			return fmt.Errorf("%w: match does not exist yet", errNotReady)
		}
		switch state := summary.State(); state {
		case StatusPending, StatusStaked:
			return nil
		default:
			return fmt.Errorf("%w: status %q", errNotReady, state)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w after %d attempts: %w", ErrConfirmationTimeout, attempt, err)
	}

	log.Printf("[CHAIN] Match %s confirmed on-chain", matchID)
	return nil
}

// AwaitBothStaked polls until both stakes are deposited or ctx is done.
// progress is called with the deposited count whenever it grows.
func (r *Reconciler) AwaitBothStaked(ctx context.Context, matchID string, progress func(staked int)) error {
	ticker := time.NewTicker(r.policy.PollInterval)
	defer ticker.Stop()

	last := 0
	for {
		summary, err := r.ledger.MatchSummary(ctx, matchID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[CHAIN] Error polling stakes for match %s: %v", matchID, err)
		case summary.BothStaked():
			log.Printf("[CHAIN] Both players staked for match %s", matchID)
			return nil
		default:
			if n := summary.StakedCount(); n > last {
				last = n
				if progress != nil {
					progress(n)
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ReportResult submits the winner once. Delivery guarantees beyond that
// belong to the ledger.
func (r *Reconciler) ReportResult(ctx context.Context, matchID, winner string) error {
	if err := r.ledger.SubmitResult(ctx, matchID, winner); err != nil {
		return fmt.Errorf("%w: %w", ErrResultReportFailed, err)
	}
	return nil
}
