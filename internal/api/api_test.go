package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelwar.app/pxw/internal/game"
	"pixelwar.app/pxw/internal/journal"
	"pixelwar.app/pxw/internal/types"
)

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHandleHealth(t *testing.T) {
	svc, _, _ := setupTest(t)

	w := httptest.NewRecorder()
	svc.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestHandleVersion(t *testing.T) {
	svc, _, _ := setupTest(t)

	w := httptest.NewRecorder()
	svc.HandleVersion(w, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	body := decode(t, w)
	assert.Equal(t, types.Version, body["version"])
	assert.Equal(t, "0xgame", body["game_id"])
	assert.Equal(t, "testnet", body["network"])
}

func TestHandleGame(t *testing.T) {
	svc, g, _ := setupTest(t)
	g.view.PrizePool = "1.00"

	w := httptest.NewRecorder()
	svc.HandleGame(w, httptest.NewRequest(http.MethodGet, "/api/game", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "1.00", body["prize_pool"])
	assert.Equal(t, "ready", body["phase"])
}

func TestHandleJoin(t *testing.T) {
	svc, g, _ := setupTest(t)

	w := httptest.NewRecorder()
	svc.HandleJoin(w, jsonRequest(http.MethodPost, "/api/team/join", `{"team":"blue","stake":"0.25"}`))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, types.TeamBlue, g.joined)
	assert.Equal(t, "0.25", g.stake)
}

func TestHandleJoinBadTeam(t *testing.T) {
	svc, g, _ := setupTest(t)

	w := httptest.NewRecorder()
	svc.HandleJoin(w, jsonRequest(http.MethodPost, "/api/team/join", `{"team":"green","stake":"1"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	svc.HandleJoin(w, jsonRequest(http.MethodPost, "/api/team/join", `not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, g.calls)
}

func TestHandlePaint(t *testing.T) {
	svc, g, _ := setupTest(t)

	w := httptest.NewRecorder()
	svc.HandlePaint(w, jsonRequest(http.MethodPost, "/api/pixels/paint", `{"x":0,"y":7}`))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []types.Coord{{X: 0, Y: 7}}, g.painted)

	w = httptest.NewRecorder()
	svc.HandlePaint(w, jsonRequest(http.MethodPost, "/api/pixels/paint", `{"x":1}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActionErrorsCarryKind(t *testing.T) {
	svc, g, _ := setupTest(t)
	g.err = &game.ActionError{Op: game.OpPaint, Kind: game.KindNotMember, Message: "Please join a team first"}

	w := httptest.NewRecorder()
	svc.HandlePaint(w, jsonRequest(http.MethodPost, "/api/pixels/paint", `{"x":1,"y":1}`))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Please join a team first", body["error"])
	assert.Equal(t, "not_member", body["kind"])

	g.err = game.ErrStopped
	w = httptest.NewRecorder()
	svc.HandleClaim(w, httptest.NewRequest(http.MethodPost, "/api/reward/claim", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSimpleActions(t *testing.T) {
	svc, g, _ := setupTest(t)

	cases := []struct {
		handler http.HandlerFunc
		call    string
		status  int
	}{
		{svc.HandleConnect, "connect", http.StatusNoContent},
		{svc.HandleDisconnect, "disconnect", http.StatusNoContent},
		{svc.HandleSpeedBoost, "boost", http.StatusAccepted},
		{svc.HandleClaim, "claim", http.StatusAccepted},
		{svc.HandleDismiss, "dismiss", http.StatusNoContent},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		tc.handler(w, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, tc.status, w.Code, tc.call)
	}
	assert.Equal(t, []string{"connect", "disconnect", "boost", "claim", "dismiss"}, g.calls)

	w := httptest.NewRecorder()
	svc.HandleRefresh(w, httptest.NewRequest(http.MethodPost, "/api/game/refresh", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, g.refreshed)
}

func TestHandleDismissFeedMessage(t *testing.T) {
	svc, g, _ := setupTest(t)
	id := svc.feed.Error("boom")

	w := httptest.NewRecorder()
	svc.HandleDismiss(w, httptest.NewRequest(http.MethodPost, "/api/errors/dismiss?id="+id, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, svc.feed.GetAll())

	w = httptest.NewRecorder()
	svc.HandleDismiss(w, httptest.NewRequest(http.MethodPost, "/api/errors/dismiss?id="+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, g.calls)
}

func TestHandleHistory(t *testing.T) {
	svc, _, j := setupTest(t)
	ctx := context.Background()
	require.NoError(t, j.RecordTx(ctx, journal.TxRecord{Digest: "D1", Kind: "paint_pixel", GameID: "0xgame", Status: journal.StatusSuccess}))
	require.NoError(t, j.RecordGameEnd(ctx, journal.GameRecord{GameID: "0xgame", GameNumber: 1, Red: 3, Blue: 2}))

	w := httptest.NewRecorder()
	svc.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Transactions []journal.TxRecord   `json:"transactions"`
		Games        []journal.GameRecord `json:"games"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Transactions, 1)
	assert.Equal(t, "D1", body.Transactions[0].Digest)
	require.Len(t, body.Games, 1)
	assert.Equal(t, uint64(3), body.Games[0].Red)

	w = httptest.NewRecorder()
	svc.HandleHistory(w, httptest.NewRequest(http.MethodGet, "/api/history?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleBackup(t *testing.T) {
	svc, _, _ := setupTest(t)

	w := httptest.NewRecorder()
	svc.HandleBackup(w, httptest.NewRequest(http.MethodPost, "/api/journal/backup", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.FileExists(t, body["path"].(string))
}

func TestHandleMessages(t *testing.T) {
	svc, _, _ := setupTest(t)
	svc.feed.Info("one")
	svc.feed.Warning("two")

	w := httptest.NewRecorder()
	svc.HandleMessages(w, httptest.NewRequest(http.MethodGet, "/api/messages?limit=1", nil))

	var msgs []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "two", msgs[0]["text"])
}
