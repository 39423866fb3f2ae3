package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/hub"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/lineup"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/room"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/storage"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/ws"
	"github.com/geman220/ECS-Discord-Bot-sub006/pkg/types"
)

func newTestServer(t *testing.T, authz ws.Authorizer) (*httptest.Server, *hub.Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, storage.NewMemory(), zap.NewNop())
	srv := httptest.NewServer(SetupRoutes(h, authz, []string{"*"}, zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv, h
}

func liveRoom(t *testing.T, h *hub.Hub, matchID, teamID int) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	h.Inbox() <- hub.GetRoom{Key: hub.Key{MatchID: matchID, TeamID: teamID}, Reply: reply}
	return <-reply
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, editorID string) (*http.Response, types.SaveLineupResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if editorID != "" {
		req.Header.Set(editorIDHeader, editorID)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	var out types.SaveLineupResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	return resp, out
}

func TestLineupAPI_SaveFlow(t *testing.T) {
	srv, _ := newTestServer(t, ws.AllowAll)
	base := srv.URL + "/api/v1/matches/123/teams/45/lineup"

	// fresh lineup
	resp, err := srv.Client().Get(base)
	require.NoError(t, err)
	var snap types.JoinedRoom
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Equal(t, 1, snap.Version)
	assert.Empty(t, snap.Positions)
	assert.True(t, snap.IsCoach)

	// full save against the fresh version
	put, out := doJSON(t, srv.Client(), http.MethodPut, base, types.SaveLineupRequest{
		Positions: []lineup.PositionEntry{
			{PlayerID: 7, Slot: "st", Order: 0},
			{PlayerID: 8, Slot: "cam", Order: 1},
		},
		Notes:   "press high",
		Version: 1,
	}, "coach-1")
	assert.Equal(t, http.StatusOK, put.StatusCode)
	assert.True(t, out.Success)
	assert.Equal(t, 4, out.Version) // 2 positions + notes

	// the save is visible on the next read
	resp, err = srv.Client().Get(base)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Equal(t, 4, snap.Version)
	assert.Len(t, snap.Positions, 2)
	assert.Equal(t, "press high", snap.Notes)
}

func TestLineupAPI_StaleSaveGets409(t *testing.T) {
	srv, _ := newTestServer(t, ws.AllowAll)
	base := srv.URL + "/api/v1/matches/1/teams/2/lineup"

	// first coach saves
	_, first := doJSON(t, srv.Client(), http.MethodPut, base, types.SaveLineupRequest{
		Positions: []lineup.PositionEntry{{PlayerID: 7, Slot: "st", Order: 0}},
		Version:   1,
	}, "coach-1")
	require.True(t, first.Success)

	// second coach still holds version 1
	resp, out := doJSON(t, srv.Client(), http.MethodPut, base, types.SaveLineupRequest{
		Positions: []lineup.PositionEntry{{PlayerID: 9, Slot: "gk", Order: 0}},
		Version:   1,
	}, "coach-2")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.True(t, out.Conflict)
	assert.Equal(t, first.Version, out.Version)
}

func TestLineupAPI_DeletePosition(t *testing.T) {
	srv, _ := newTestServer(t, ws.AllowAll)
	base := srv.URL + "/api/v1/matches/1/teams/2/lineup"

	_, saved := doJSON(t, srv.Client(), http.MethodPut, base, types.SaveLineupRequest{
		Positions: []lineup.PositionEntry{{PlayerID: 7, Slot: "st", Order: 0}},
		Version:   1,
	}, "coach-1")
	require.True(t, saved.Success)

	resp, out := doJSON(t, srv.Client(), http.MethodDelete, base+"/position/7", nil, "coach-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, saved.Version+1, out.Version)

	resp, _ = doJSON(t, srv.Client(), http.MethodDelete, base+"/position/7", nil, "coach-1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLineupAPI_NonCoachForbidden(t *testing.T) {
	onlyCoach := func(editorID string, teamID int) bool { return editorID == "coach-1" }
	srv, _ := newTestServer(t, onlyCoach)
	base := srv.URL + "/api/v1/matches/1/teams/2/lineup"

	resp, _ := doJSON(t, srv.Client(), http.MethodPut, base, types.SaveLineupRequest{Version: 1}, "spectator")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, srv.Client(), http.MethodDelete, base+"/position/7", nil, "spectator")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// the snapshot itself stays readable, with the coach flag cleared
	get, err := srv.Client().Get(base)
	require.NoError(t, err)
	var snap types.JoinedRoom
	require.NoError(t, json.NewDecoder(get.Body).Decode(&snap))
	get.Body.Close()
	assert.False(t, snap.IsCoach)
}

func TestLineupAPI_SaveWithoutVersion(t *testing.T) {
	srv, _ := newTestServer(t, ws.AllowAll)
	base := srv.URL + "/api/v1/matches/1/teams/2/lineup"

	// no version field: the client opted out of optimistic locking
	resp, out := doJSON(t, srv.Client(), http.MethodPut, base, types.SaveLineupRequest{
		Positions: []lineup.PositionEntry{{PlayerID: 7, Slot: "st", Order: 0}},
	}, "coach-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Version)
}

func TestLineupAPI_FullSaveDropsOmittedPlayers(t *testing.T) {
	srv, _ := newTestServer(t, ws.AllowAll)
	base := srv.URL + "/api/v1/matches/1/teams/2/lineup"

	_, first := doJSON(t, srv.Client(), http.MethodPut, base, types.SaveLineupRequest{
		Positions: []lineup.PositionEntry{
			{PlayerID: 7, Slot: "st", Order: 0},
			{PlayerID: 8, Slot: "cam", Order: 1},
		},
		Version: 1,
	}, "coach-1")
	require.True(t, first.Success)

	_, second := doJSON(t, srv.Client(), http.MethodPut, base, types.SaveLineupRequest{
		Positions: []lineup.PositionEntry{{PlayerID: 7, Slot: "st", Order: 0}},
		Version:   first.Version,
	}, "coach-1")
	require.True(t, second.Success)

	resp, err := srv.Client().Get(base)
	require.NoError(t, err)
	var snap types.JoinedRoom
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, 7, snap.Positions[0].PlayerID)
}

func TestLineupAPI_GetDoesNotCreateRoom(t *testing.T) {
	srv, h := newTestServer(t, ws.AllowAll)

	resp, err := srv.Client().Get(srv.URL + "/api/v1/matches/99/teams/1/lineup")
	require.NoError(t, err)
	var snap types.JoinedRoom
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Equal(t, 1, snap.Version)

	assert.Nil(t, liveRoom(t, h, 99, 1), "snapshot reads must not spin up rooms")
}

func TestLineupAPI_GetReadsStorageWhenRoomIdle(t *testing.T) {
	srv, h := newTestServer(t, ws.AllowAll)
	base := srv.URL + "/api/v1/matches/1/teams/2/lineup"

	_, saved := doJSON(t, srv.Client(), http.MethodPut, base, types.SaveLineupRequest{
		Positions: []lineup.PositionEntry{{PlayerID: 7, Slot: "st", Order: 0}},
		Notes:     "press high",
		Version:   1,
	}, "coach-1")
	require.True(t, saved.Success)

	// room shut down, persisted state survives; the hub inbox is FIFO so the
	// follow-up lookup observes the removal
	h.Inbox() <- hub.RemoveRoom{Key: hub.Key{MatchID: 1, TeamID: 2}}
	require.Nil(t, liveRoom(t, h, 1, 2))

	resp, err := srv.Client().Get(base)
	require.NoError(t, err)
	var snap types.JoinedRoom
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Equal(t, saved.Version, snap.Version)
	assert.Len(t, snap.Positions, 1)
	assert.Equal(t, "press high", snap.Notes)
}

func TestLineupAPI_BadIDs(t *testing.T) {
	srv, _ := newTestServer(t, ws.AllowAll)

	resp, err := srv.Client().Get(srv.URL + "/api/v1/matches/abc/teams/2/lineup")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, ws.AllowAll)
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
