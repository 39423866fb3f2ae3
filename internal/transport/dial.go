package transport

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/geman220/ECS-Discord-Bot-sub006/pkg/types"
)

// Config selects the endpoints and identifies the editor session.
type Config struct {
	// BaseURL is the REST root, e.g. "http://localhost:8080".
	BaseURL string
	// WSURL is the websocket endpoint, e.g. "ws://localhost:8080/ws". Empty
	// disables channel mode entirely.
	WSURL       string
	MatchID     int
	TeamID      int
	EditorID    string
	DisplayName string
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Dial performs capability detection: channel mode if the websocket
// handshake succeeds, REST fallback otherwise. The Welcome comes from
// whichever path won.
func Dial(ctx context.Context, cfg Config) (Transport, *Welcome, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.WSURL != "" {
		join := types.JoinRoom{
			MatchID:     cfg.MatchID,
			TeamID:      cfg.TeamID,
			EditorID:    cfg.EditorID,
			DisplayName: cfg.DisplayName,
		}
		ch, welcome, err := DialChannel(ctx, cfg.WSURL, join, log.Named("channel"))
		if err == nil {
			return ch, welcome, nil
		}
		log.Info("channel unavailable, falling back to REST", zap.Error(err))
	}

	rest := NewREST(cfg.BaseURL, cfg.HTTPClient, cfg.MatchID, cfg.TeamID, log.Named("rest"))
	welcome, err := rest.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}
	return rest, welcome, nil
}
