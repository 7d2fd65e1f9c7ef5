package api

import (
	"fmt"
	"net/http"
	"runtime"

	"pixelwar.app/pxw/internal/types"
)

// @Title: Get Health
// @Route: GET /api/health
// @Description: Returns server health status
// @Response: {"status": "ok"}
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// @Title: Get Version
// @Route: GET /api/version
// @Description: Returns pxw version, the followed game and the required network
// @Response: {"version": "...", "status": "ok", "game_id": "...", "network": "testnet"}
func (s *Service) HandleVersion(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"version":    types.Version,
		"build_time": types.BuildTime,
		"status":     "ok",
		"go_ver":     runtime.Version(),
		"os_arch":    fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		"game_id":    s.game.GameID(),
		"network":    s.network,
	}
	s.writeJSON(w, http.StatusOK, response)
}
