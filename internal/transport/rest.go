package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/geman220/ECS-Discord-Bot-sub006/pkg/types"
)

// REST is the fallback adapter: every flush is a discrete request carrying
// the expected version, and the response carries the verdict. There is no
// push path, so other editors' changes only show up on reload.
type REST struct {
	base    string
	client  *http.Client
	log     *zap.Logger
	matchID int
	teamID  int
}

func NewREST(base string, client *http.Client, matchID, teamID int, log *zap.Logger) *REST {
	if client == nil {
		client = http.DefaultClient
	}
	return &REST{base: base, client: client, log: log, matchID: matchID, teamID: teamID}
}

func (r *REST) lineupURL() string {
	return fmt.Sprintf("%s/api/v1/matches/%d/teams/%d/lineup", r.base, r.matchID, r.teamID)
}

// Fetch loads the current snapshot; used as the join handshake when no
// channel is available.
func (r *REST) Fetch(ctx context.Context) (*Welcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.lineupURL(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch lineup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch lineup: unexpected status %d", resp.StatusCode)
	}
	var jr types.JoinedRoom
	if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
		return nil, fmt.Errorf("fetch lineup: %w", err)
	}
	return &Welcome{
		Positions:     jr.Positions,
		Notes:         jr.Notes,
		Version:       jr.Version,
		ActiveCoaches: jr.ActiveCoaches,
		IsCoach:       jr.IsCoach,
	}, nil
}

func (r *REST) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	body := types.SaveLineupRequest{
		Positions: req.Positions,
		Notes:     req.Notes,
		Version:   req.ExpectedVersion,
	}
	return r.do(ctx, http.MethodPut, r.lineupURL(), &body)
}

func (r *REST) Remove(ctx context.Context, playerID, expectedVersion int) (*SaveResult, error) {
	url := fmt.Sprintf("%s/position/%d?version=%d", r.lineupURL(), playerID, expectedVersion)
	return r.do(ctx, http.MethodDelete, url, nil)
}

func (r *REST) Events() <-chan Event { return nil }

func (r *REST) Close() error { return nil }

func (r *REST) do(ctx context.Context, method, url string, body any) (*SaveResult, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s lineup: %w", method, err)
	}
	defer resp.Body.Close()

	var out types.SaveLineupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s lineup: bad response: %w", method, err)
	}

	switch {
	case resp.StatusCode == http.StatusConflict || out.Conflict:
		return &SaveResult{Version: out.Version, Conflict: true, Message: out.Message}, nil
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s lineup: %s", method, out.Message)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s lineup: status %d: %s", method, resp.StatusCode, out.Message)
	}
	return &SaveResult{Version: out.Version}, nil
}
