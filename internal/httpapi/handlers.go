package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/hub"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/lineup"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/room"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/storage"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/ws"
	"github.com/geman220/ECS-Discord-Bot-sub006/pkg/types"
)

// editorIDHeader identifies the caller in REST mode. The portal fronting
// this server maps its session auth onto it.
const editorIDHeader = "X-Editor-ID"

func ensureRoom(h *hub.Hub, matchID, teamID int) *room.Room {
	reply := make(chan *room.Room, 1)
	h.Inbox() <- hub.EnsureRoom{Key: hub.Key{MatchID: matchID, TeamID: teamID}, Reply: reply}
	return <-reply
}

func roomIDs(r *http.Request) (matchID, teamID int, ok bool) {
	matchID, err1 := strconv.Atoi(chi.URLParam(r, "matchID"))
	teamID, err2 := strconv.Atoi(chi.URLParam(r, "teamID"))
	return matchID, teamID, err1 == nil && err2 == nil && matchID > 0 && teamID > 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GetLineup returns the current snapshot; it doubles as the REST-mode join
// handshake. Reads go to the live room when one exists and straight to
// storage otherwise, so polling arbitrary (match, team) pairs does not
// accumulate idle room actors.
func GetLineup(h *hub.Hub, authz ws.Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID, teamID, ok := roomIDs(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, types.Error{Message: "invalid match or team id"})
			return
		}

		snap := types.JoinedRoom{
			MatchID:   matchID,
			TeamID:    teamID,
			Positions: []lineup.PositionEntry{},
			Version:   1,
			IsCoach:   authz(r.Header.Get(editorIDHeader), teamID),
		}

		roomReply := make(chan *room.Room, 1)
		h.Inbox() <- hub.GetRoom{Key: hub.Key{MatchID: matchID, TeamID: teamID}, Reply: roomReply}
		if rm := <-roomReply; rm != nil {
			reply := make(chan room.View, 1)
			rm.Inbox() <- room.GetState{Reply: reply}
			view := <-reply
			snap.Positions = view.Positions
			snap.Notes = view.Notes
			snap.Version = view.Version
		} else if st := h.Storage(); st != nil {
			rec, err := st.Load(r.Context(), matchID, teamID)
			switch {
			case err == nil:
				snap.Positions = rec.Positions
				snap.Notes = rec.Notes
				snap.Version = rec.Version
			case err != storage.ErrNotFound:
				writeJSON(w, http.StatusInternalServerError, types.Error{Message: "load lineup failed"})
				return
			}
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

// PutLineup is the optimistic-locking full save: the body carries the
// version the client last saw, and a mismatch is a 409 the client surfaces
// as a conflict toast. An omitted version skips the check.
func PutLineup(h *hub.Hub, authz ws.Authorizer, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID, teamID, ok := roomIDs(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, types.Error{Message: "invalid match or team id"})
			return
		}

		editorID := r.Header.Get(editorIDHeader)
		if !authz(editorID, teamID) {
			writeJSON(w, http.StatusForbidden, types.SaveLineupResponse{
				Message: "you are not authorized to edit this lineup",
			})
			return
		}

		var body types.SaveLineupRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, types.Error{Message: "bad request body"})
			return
		}

		reply := make(chan room.Result, 1)
		ensureRoom(h, matchID, teamID).Inbox() <- room.SaveLineup{
			EditorID:        editorID,
			Positions:       body.Positions,
			Notes:           body.Notes,
			ExpectedVersion: body.Version,
			Reply:           reply,
		}
		res := <-reply

		if res.Conflict {
			log.Info("lineup save conflict",
				zap.Int("match_id", matchID),
				zap.Int("team_id", teamID),
				zap.Int("client_version", body.Version),
				zap.Int("current_version", res.CurrentVersion))
			writeJSON(w, http.StatusConflict, types.SaveLineupResponse{
				Conflict: true,
				Version:  res.CurrentVersion,
				Message:  "lineup was modified by another coach",
			})
			return
		}
		writeJSON(w, http.StatusOK, types.SaveLineupResponse{Success: true, Version: res.Version})
	}
}

// DeletePosition removes a single player from the lineup.
func DeletePosition(h *hub.Hub, authz ws.Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID, teamID, ok := roomIDs(r)
		if !ok {
			writeJSON(w, http.StatusBadRequest, types.Error{Message: "invalid match or team id"})
			return
		}
		playerID, err := strconv.Atoi(chi.URLParam(r, "playerID"))
		if err != nil || playerID <= 0 {
			writeJSON(w, http.StatusBadRequest, types.Error{Message: "invalid player id"})
			return
		}

		editorID := r.Header.Get(editorIDHeader)
		if !authz(editorID, teamID) {
			writeJSON(w, http.StatusForbidden, types.SaveLineupResponse{
				Message: "you are not authorized to edit this lineup",
			})
			return
		}

		reply := make(chan room.Result, 1)
		ensureRoom(h, matchID, teamID).Inbox() <- room.RemovePlayer{
			EditorID: editorID,
			PlayerID: playerID,
			Reply:    reply,
		}
		res := <-reply

		if res.NotFound {
			writeJSON(w, http.StatusNotFound, types.SaveLineupResponse{Message: "player not in lineup"})
			return
		}
		writeJSON(w, http.StatusOK, types.SaveLineupResponse{Success: true, Version: res.Version})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
