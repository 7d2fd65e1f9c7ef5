package api

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pixelwar.app/pxw/internal/game"
	"pixelwar.app/pxw/internal/journal"
	"pixelwar.app/pxw/internal/logger"
	"pixelwar.app/pxw/internal/types"
)

// mockGame implements Game for testing
type mockGame struct {
	mu        sync.Mutex
	view      game.View
	err       error
	calls     []string
	painted   []types.Coord
	joined    types.Team
	stake     string
	refreshed int
}

func (m *mockGame) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.err
}

func (m *mockGame) View() (game.View, error) { return m.view, m.err }
func (m *mockGame) GameID() string          { return m.view.GameID }

func (m *mockGame) Paint(x, y uint32) error {
	m.mu.Lock()
	m.painted = append(m.painted, types.Coord{X: x, Y: y})
	m.mu.Unlock()
	return m.record("paint")
}

func (m *mockGame) JoinTeam(team types.Team, stake string) error {
	m.mu.Lock()
	m.joined, m.stake = team, stake
	m.mu.Unlock()
	return m.record("join")
}

func (m *mockGame) BuySpeedBoost() error { return m.record("boost") }
func (m *mockGame) ClaimReward() error   { return m.record("claim") }
func (m *mockGame) Connect() error       { return m.record("connect") }
func (m *mockGame) Disconnect() error    { return m.record("disconnect") }
func (m *mockGame) DismissError() error  { return m.record("dismiss") }

func (m *mockGame) Refresh() {
	m.mu.Lock()
	m.refreshed++
	m.mu.Unlock()
}

// setupTest creates a temporary journal and service for testing
func setupTest(t *testing.T) (*Service, *mockGame, *journal.Journal) {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "pxw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	g := &mockGame{view: game.View{GameID: "0xgame", Phase: "ready"}}
	svc := NewService(g, j, logger.New(100), nil, "testnet", 2)
	return svc, g, j
}
