package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Remote match statuses reported by the ledger
const (
	StatusPending = "PENDING"
	StatusStaked  = "STAKED"
)

// Client talks to the external match ledger over HTTP
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a ledger client. timeout bounds every single request.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StatusError is returned for any non-2xx ledger response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ledger returned status %d: %s", e.StatusCode, e.Body)
}

// StartMatchRequest registers a match on the ledger
type StartMatchRequest struct {
	MatchID string `json:"matchId"`
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
	Stake   string `json:"stake"`
}

type resultRequest struct {
	MatchID string `json:"matchId"`
	Winner  string `json:"winner"`
}

// MatchSummary is the ledger's view of a match. Older deployments send
// statusText instead of status and may omit bothPlayersStaked.
type MatchSummary struct {
	Exists            bool   `json:"exists"`
	Status            string `json:"status"`
	StatusText        string `json:"statusText"`
	Player1Staked     bool   `json:"player1Staked"`
	Player2Staked     bool   `json:"player2Staked"`
	BothPlayersStaked bool   `json:"bothPlayersStaked"`
}

// State returns the upper-cased remote status from whichever field is set
func (s *MatchSummary) State() string {
	status := s.Status
	if status == "" {
		status = s.StatusText
	}
	return strings.ToUpper(strings.TrimSpace(status))
}

// StakedCount returns how many players have deposited
func (s *MatchSummary) StakedCount() int {
	if s.BothPlayersStaked {
		return 2
	}
	n := 0
	if s.Player1Staked {
		n++
	}
	if s.Player2Staked {
		n++
	}
	return n
}

// BothStaked reports whether the ledger considers the match fully funded.
// The deposit flags are authoritative; status may lag behind them.
func (s *MatchSummary) BothStaked() bool {
	return s.StakedCount() == 2
}

// StartMatch creates the on-chain match record
func (c *Client) StartMatch(ctx context.Context, req StartMatchRequest) error {
	return c.do(ctx, http.MethodPost, "/match/start", req, nil)
}

// MatchSummary fetches the current ledger status of a match
func (c *Client) MatchSummary(ctx context.Context, matchID string) (*MatchSummary, error) {
	var summary MatchSummary
	if err := c.do(ctx, http.MethodGet, "/match/summary/"+url.PathEscape(matchID), nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// SubmitResult hands the winner of a match to the ledger for payout
func (c *Client) SubmitResult(ctx context.Context, matchID, winner string) error {
	return c.do(ctx, http.MethodPost, "/match/result", resultRequest{MatchID: matchID, Winner: winner}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
