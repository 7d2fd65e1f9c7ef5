package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"pixelwar.app/pxw/internal/game"
	"pixelwar.app/pxw/internal/journal"
	"pixelwar.app/pxw/internal/logger"
	"pixelwar.app/pxw/internal/types"
)

// Game is the controller surface the handlers drive.
type Game interface {
	View() (game.View, error)
	GameID() string
	Paint(x, y uint32) error
	JoinTeam(team types.Team, stake string) error
	BuySpeedBoost() error
	ClaimReward() error
	Connect() error
	Disconnect() error
	DismissError() error
	Refresh()
}

// History is the journal surface the handlers read.
type History interface {
	RecentTx(ctx context.Context, n int) ([]journal.TxRecord, error)
	Games(ctx context.Context, n int) ([]journal.GameRecord, error)
	BackupCurrent(max int) (string, error)
}

// Service handles API requests
type Service struct {
	game    Game
	history History
	feed    *logger.Logger
	log     *zap.Logger
	network string
	backups int
}

// NewService creates a new API service
func NewService(g Game, history History, feed *logger.Logger, log *zap.Logger, network string, backups int) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if backups <= 0 {
		backups = 5
	}
	return &Service{
		game:    g,
		history: history,
		feed:    feed,
		log:     log.Named("api"),
		network: network,
		backups: backups,
	}
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeActionError reports a failed game action. Classified failures carry
// their kind so the page can react to it.
func (s *Service) writeActionError(w http.ResponseWriter, err error) {
	var ae *game.ActionError
	switch {
	case errors.As(err, &ae):
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": ae.Message,
			"kind":  string(ae.Kind),
		})
	case errors.Is(err, game.ErrStopped):
		s.writeError(w, http.StatusServiceUnavailable, "Game controller is not running")
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
