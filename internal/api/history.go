package api

import (
	"fmt"
	"net/http"
	"strconv"
)

const defaultHistoryLimit = 20

// @Title: Get History
// @Route: GET /api/history?limit=
// @Description: Returns recent transactions and finished games from the journal
// @Response: {"transactions": [...], "games": [...]}
func (s *Service) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	txs, err := s.history.RecentTx(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read transactions")
		return
	}
	games, err := s.history.Games(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to read games")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"games":        games,
	})
}

// @Title: Backup Journal
// @Route: POST /api/journal/backup
// @Description: Snapshots the journal database into the backups directory
// @Response: {"status": "ok", "path": "..."}
func (s *Service) HandleBackup(w http.ResponseWriter, r *http.Request) {
	backupPath, err := s.history.BackupCurrent(s.backups)
	if err != nil {
		s.feed.Error(fmt.Sprintf("Failed to back up journal: %v", err))
		s.writeError(w, http.StatusInternalServerError, "Failed to save journal backup")
		return
	}

	s.feed.Info(fmt.Sprintf("Journal backed up to %s", backupPath))
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"path":   backupPath,
	})
}

// @Title: Get Messages
// @Route: GET /api/messages?limit=
// @Description: Returns the most recent notices and errors shown to the player
// @Response: Array of Message objects
func (s *Service) HandleMessages(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}
	s.writeJSON(w, http.StatusOK, s.feed.GetRecent(limit))
}
