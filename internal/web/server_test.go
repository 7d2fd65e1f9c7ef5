package web

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelwar.app/pxw/internal/game"
	"pixelwar.app/pxw/internal/journal"
	"pixelwar.app/pxw/internal/types"
)

type stubGame struct {
	mu      sync.Mutex
	view    game.View
	views   chan game.View
	painted []types.Coord
}

func newStubGame() *stubGame {
	return &stubGame{
		views: make(chan game.View, 4),
		view: game.View{
			Phase:       "ready",
			GameID:      "0xgame",
			HasSnapshot: true,
			Snapshot: types.GameSnapshot{
				GameNumber:   3,
				CanvasWidth:  2,
				CanvasHeight: 2,
				IsActive:     true,
			},
			PrizePool:     "1.00",
			Red:           1,
			RedShare:      100,
			TimeRemaining: "59:00",
			Pixels:        map[string]types.Team{"0,0": types.TeamRed},
			Network:       "testnet",
		},
	}
}

func (g *stubGame) View() (game.View, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view, nil
}

func (g *stubGame) GameID() string { return "0xgame" }

func (g *stubGame) Paint(x, y uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.painted = append(g.painted, types.Coord{X: x, Y: y})
	return nil
}

func (g *stubGame) JoinTeam(types.Team, string) error { return nil }
func (g *stubGame) BuySpeedBoost() error              { return nil }
func (g *stubGame) ClaimReward() error                { return nil }
func (g *stubGame) Connect() error                    { return nil }
func (g *stubGame) Disconnect() error                 { return nil }
func (g *stubGame) DismissError() error               { return nil }
func (g *stubGame) Refresh()                          {}

func (g *stubGame) Subscribe() (<-chan game.View, func()) {
	return g.views, func() {}
}

func setupServer(t *testing.T) (*Server, *stubGame, *journal.Journal) {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "pxw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	g := newStubGame()
	s, err := NewServer(g, j, Options{Port: 0, Network: "testnet", Backups: 2})
	require.NoError(t, err)
	return s, g, j
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestPageLoadRendersCanvas(t *testing.T) {
	s, _, _ := setupServer(t)

	w := get(t, s.Handler(), "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Pixel War")
	assert.Contains(t, body, "#3")
	assert.Contains(t, body, "1.00 SUI")
	assert.Equal(t, 1, strings.Count(body, "pixel pixel-red"))
	assert.Equal(t, 3, strings.Count(body, "pixel pixel-empty"))
	assert.Contains(t, body, "Connect Wallet")
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
}

func TestGameViewIsFragmentEvent(t *testing.T) {
	s, g, _ := setupServer(t)
	g.view.AutoCreateIn = 4
	g.view.CanClaim = true
	g.view.Connected = true
	g.view.Account = "0xabcdef0123456789"
	g.view.TeamLabel = "Blue"

	w := get(t, s.Handler(), "/views/game")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: datastar-merge-fragments\n"))
	assert.Contains(t, body, `data: fragments <div id="content-area">`)
	assert.Contains(t, body, "Creating new game in 4 seconds...")
	assert.Contains(t, body, "Claim Reward")
	assert.Contains(t, body, "Blue")
	assert.NotContains(t, body, "Join Red")
}

func TestHistoryView(t *testing.T) {
	s, _, j := setupServer(t)
	require.NoError(t, j.RecordTx(context.Background(), journal.TxRecord{
		Digest: "D1", Kind: "paint_pixel", GameID: "0xgame", Status: journal.StatusSuccess,
	}))

	w := get(t, s.Handler(), "/views/history")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `id="history"`)
	assert.Contains(t, body, "paint_pixel")
	assert.Contains(t, body, "No finished games yet")
}

func TestDocsAndAPIViews(t *testing.T) {
	s, _, _ := setupServer(t)
	h := s.Handler()

	w := get(t, h, "/views/help")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Joining")

	w = get(t, h, "/views/help?doc=../../etc/passwd")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(t, h, "/views/api")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/pixels/paint")
}

func TestAPIMounted(t *testing.T) {
	s, g, _ := setupServer(t)
	h := s.Handler()

	w := get(t, h, "/api/health")
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/pixels/paint", strings.NewReader(`{"x":1,"y":0}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []types.Coord{{X: 1, Y: 0}}, g.painted)

	w = get(t, h, "/api/pixels/paint")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// readEvent reads one SSE event, returning its data lines joined.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var sb strings.Builder
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			return sb.String()
		}
		sb.WriteString(line)
	}
}

func TestGameStreamPushesViews(t *testing.T) {
	s, g, _ := setupServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.watchGame(ctx)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/game/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	first := readEvent(t, r)
	assert.Contains(t, first, `<div id="game"`)
	assert.NotContains(t, first, "Wrong network")

	v, _ := g.View()
	v.Banner = "Wrong network"
	g.views <- v

	assert.Contains(t, readEvent(t, r), "Wrong network")
}

func TestStatusWebsocketStreamsFeed(t *testing.T) {
	s, _, _ := setupServer(t)
	s.Feed().Info("welcome")

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/status", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var update feedUpdate
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "feed", update.Type)
	require.Len(t, update.Messages, 1)
	assert.Equal(t, "welcome", update.Messages[0].Text)

	s.Feed().Error("boom")
	require.NoError(t, conn.ReadJSON(&update))
	require.Len(t, update.Messages, 2)
	assert.Equal(t, "boom", update.Messages[0].Text)
	assert.Equal(t, "error", update.Messages[0].Level)
}

func TestFormatSSEEvent(t *testing.T) {
	out := string(formatSSEEvent("<div id=\"x\">\n\n  <p>hi</p>\n</div>"))
	assert.Equal(t, "event: datastar-merge-fragments\n"+
		"data: fragments <div id=\"x\">\n"+
		"data: fragments   <p>hi</p>\n"+
		"data: fragments </div>\n\n", out)
}

func TestBrokerSkipsSlowClients(t *testing.T) {
	b := newSSEBroker()
	slow := make(chan []byte)
	fast := make(chan []byte, 1)
	b.register(slow)
	b.register(fast)

	b.broadcast([]byte("x"))
	assert.Equal(t, []byte("x"), <-fast)

	b.unregister(slow)
	_, ok := <-slow
	assert.False(t, ok)
}
