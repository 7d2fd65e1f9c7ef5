package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"pixelwar.app/pxw/internal/types"
)

// @Title: Get Game
// @Route: GET /api/game
// @Description: Returns the current game view (snapshot, counters, pixels, team, errors)
// @Response: View object
func (s *Service) HandleGame(w http.ResponseWriter, r *http.Request) {
	v, err := s.game.View()
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

// @Title: Refresh Game
// @Route: POST /api/game/refresh
// @Description: Re-reads the game object from the ledger now
// @Response: 202 Accepted
func (s *Service) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	s.game.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

// @Title: Connect Wallet
// @Route: POST /api/wallet/connect
// @Description: Enables signing with the server wallet and looks up its team
// @Response: 204 No Content
func (s *Service) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.game.Connect(); err != nil {
		s.writeActionError(w, err)
		return
	}
	s.feed.Info("Wallet connected")
	w.WriteHeader(http.StatusNoContent)
}

// @Title: Disconnect Wallet
// @Route: POST /api/wallet/disconnect
// @Description: Disables signing and forgets the team selection
// @Response: 204 No Content
func (s *Service) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.game.Disconnect(); err != nil {
		s.writeActionError(w, err)
		return
	}
	s.feed.Info("Wallet disconnected")
	w.WriteHeader(http.StatusNoContent)
}

type joinRequest struct {
	Team  string `json:"team"`
	Stake string `json:"stake"`
}

// @Title: Join Team
// @Route: POST /api/team/join
// @Description: Stakes {"team": "red"|"blue", "stake": "0.1"} to join the current game
// @Response: 202 Accepted
func (s *Service) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeRequest(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	team, err := types.ParseTeam(req.Team)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.game.JoinTeam(team, req.Stake); err != nil {
		s.writeActionError(w, err)
		return
	}
	s.log.Info("join submitted", zap.String("team", team.String()), zap.String("stake", req.Stake))
	w.WriteHeader(http.StatusAccepted)
}

type paintRequest struct {
	X *uint32 `json:"x"`
	Y *uint32 `json:"y"`
}

// @Title: Paint Pixel
// @Route: POST /api/pixels/paint
// @Description: Paints {"x": 0, "y": 0} in the player's team color
// @Response: 202 Accepted
func (s *Service) HandlePaint(w http.ResponseWriter, r *http.Request) {
	var req paintRequest
	if err := decodeRequest(r, &req); err != nil || req.X == nil || req.Y == nil {
		s.writeError(w, http.StatusBadRequest, "x and y are required")
		return
	}

	if err := s.game.Paint(*req.X, *req.Y); err != nil {
		s.writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// @Title: Buy Speed Boost
// @Route: POST /api/powerups/speed-boost
// @Description: Buys the speed boost power-up
// @Response: 202 Accepted
func (s *Service) HandleSpeedBoost(w http.ResponseWriter, r *http.Request) {
	if err := s.game.BuySpeedBoost(); err != nil {
		s.writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// @Title: Claim Reward
// @Route: POST /api/reward/claim
// @Description: Claims the player's share of a finished game
// @Response: 202 Accepted
func (s *Service) HandleClaim(w http.ResponseWriter, r *http.Request) {
	if err := s.game.ClaimReward(); err != nil {
		s.writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// @Title: Dismiss Error
// @Route: POST /api/errors/dismiss?id=
// @Description: Clears the error banner, or the feed message with the given id
// @Response: 204 No Content
func (s *Service) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		if !s.feed.Dismiss(id) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("No message %s", id))
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.game.DismissError(); err != nil {
		s.writeActionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeRequest(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
