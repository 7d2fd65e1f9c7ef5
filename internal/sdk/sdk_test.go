package sdk

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelwar.app/pxw/internal/identity"
	"pixelwar.app/pxw/internal/ledger"
	"pixelwar.app/pxw/internal/types"
)

type fakeLedger struct {
	objects  map[string]*ledger.ObjectData
	players  map[string]*ledger.ObjectData
	readErr  error
	executed []*types.SignedTransaction
	result   *ledger.TxResult
}

func (f *fakeLedger) GetObject(_ context.Context, id string) (*ledger.ObjectData, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	obj, ok := f.objects[id]
	if !ok {
		return nil, ledger.ErrObjectNotFound
	}
	return obj, nil
}

func (f *fakeLedger) GetDynamicFieldObject(_ context.Context, parent string, name ledger.DynamicFieldName) (*ledger.ObjectData, error) {
	obj, ok := f.players[parent+"/"+name.Value]
	if !ok {
		return nil, ledger.ErrObjectNotFound
	}
	return obj, nil
}

func (f *fakeLedger) ExecuteTransaction(_ context.Context, signed *types.SignedTransaction) (*ledger.TxResult, error) {
	f.executed = append(f.executed, signed)
	return f.result, nil
}

func moveObject(fields string) *ledger.ObjectData {
	return &ledger.ObjectData{Content: &ledger.MoveContent{DataType: "moveObject", Fields: json.RawMessage(fields)}}
}

const gameFields = `{"game_number":"3","canvas_width":"50","canvas_height":"50","start_time":"1000","end_time":"601000",
"is_active":true,"prize_pool":"1000000000","red_team_pixels":"150","blue_team_pixels":"120"}`

func newTestClient(l Ledger) *Client {
	return New(Config{PackageID: "0xpkg"}, l, nil, nil)
}

func TestFetchGame(t *testing.T) {
	l := &fakeLedger{objects: map[string]*ledger.ObjectData{"0xgame": moveObject(gameFields)}}
	c := newTestClient(l)

	snap, err := c.FetchGame(context.Background(), "0xgame")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), snap.GameNumber)
	assert.Equal(t, uint64(150), snap.RedPixels)

	_, err = c.FetchGame(context.Background(), "0xmissing")
	assert.ErrorIs(t, err, ledger.ErrObjectNotFound)
	assert.Nil(t, c.FetchGameOrNil(context.Background(), "0xmissing"))

	l.objects["0xbad"] = moveObject(`{"game_number":"x"}`)
	_, err = c.FetchGame(context.Background(), "0xbad")
	assert.ErrorIs(t, err, ledger.ErrMalformedObject)

	l.readErr = ledger.ErrTimeout
	assert.Nil(t, c.FetchGameOrNil(context.Background(), "0xgame"))
}

func TestFetchPlayer(t *testing.T) {
	l := &fakeLedger{players: map[string]*ledger.ObjectData{
		"0xgame/0xabc": moveObject(`{"value":{"fields":{"team":"1","stake_amount":"100000000"}}}`),
	}}
	c := newTestClient(l)

	sel, err := c.FetchPlayer(context.Background(), "0xgame", "0xabc")
	require.NoError(t, err)
	require.NotNil(t, sel)
	assert.Equal(t, types.TeamRed, sel.Team)

	sel, err = c.FetchPlayer(context.Background(), "0xgame", "0xother")
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestBuilders(t *testing.T) {
	c := newTestClient(&fakeLedger{})

	tests := []struct {
		name     string
		intent   *types.TransactionIntent
		target   string
		gas      uint64
		payment  uint64
		argKinds []types.ArgumentKind
	}{
		{"create", c.BuildCreateGame("0xcap"), "0xpkg::pixel_war::create_game", DefaultGasBudget, 0,
			[]types.ArgumentKind{types.ArgObject, types.ArgObject}},
		{"join", c.BuildJoinTeam("0xgame", types.TeamBlue, 200_000_000), "0xpkg::pixel_war::join_team", DefaultGasBudget, 200_000_000,
			[]types.ArgumentKind{types.ArgObject, types.ArgU8, types.ArgResult, types.ArgObject}},
		{"paint", c.BuildPaintPixel("0xgame", 3, 4), "0xpkg::pixel_war::paint_pixel", DefaultGasBudget, 0,
			[]types.ArgumentKind{types.ArgObject, types.ArgU32, types.ArgU32, types.ArgObject}},
		{"boost", c.BuildBuySpeedBoost("0xgame", SpeedBoostCost), "0xpkg::pixel_war::buy_speed_boost", 0, SpeedBoostCost,
			[]types.ArgumentKind{types.ArgObject, types.ArgResult, types.ArgObject}},
		{"bomb", c.BuildBuyBomb("0xgame", 1, 2, BombCost), "0xpkg::pixel_war::buy_bomb", DefaultGasBudget, BombCost,
			[]types.ArgumentKind{types.ArgObject, types.ArgResult, types.ArgU32, types.ArgU32, types.ArgObject}},
		{"shield", c.BuildBuyShield("0xgame", 1, 2, ShieldCost), "0xpkg::pixel_war::buy_shield", DefaultGasBudget, ShieldCost,
			[]types.ArgumentKind{types.ArgObject, types.ArgResult, types.ArgU32, types.ArgU32, types.ArgObject}},
		{"claim", c.BuildClaimReward("0xgame"), "0xpkg::pixel_war::claim_reward", 0, 0,
			[]types.ArgumentKind{types.ArgObject, types.ArgObject}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := tt.intent.MoveCall()
			require.NotNil(t, mc)
			assert.Equal(t, tt.target, mc.Target())
			assert.Equal(t, tt.gas, tt.intent.GasBudget)

			kinds := make([]types.ArgumentKind, len(mc.Arguments))
			for i, a := range mc.Arguments {
				kinds[i] = a.Kind
			}
			assert.Equal(t, tt.argKinds, kinds)
			assert.Equal(t, DefaultClockID, mc.Arguments[len(mc.Arguments)-1].ObjectID)

			if tt.payment == 0 {
				assert.Len(t, tt.intent.Commands, 1)
				return
			}
			require.Len(t, tt.intent.Commands, 2)
			split := tt.intent.Commands[0].SplitCoins
			require.NotNil(t, split)
			assert.Equal(t, tt.payment, split.Amounts[0].Value)
		})
	}

	join := c.BuildJoinTeam("0xgame", types.TeamBlue, 1).MoveCall()
	assert.Equal(t, uint64(types.TeamBlue), join.Arguments[1].Value)
	paint := c.BuildPaintPixel("0xgame", 3, 4).MoveCall()
	assert.Equal(t, uint64(3), paint.Arguments[1].Value)
	assert.Equal(t, uint64(4), paint.Arguments[2].Value)
}

func TestSubmitSignsWithSender(t *testing.T) {
	id, err := identity.FromSeedHex(strings.Repeat("ab", ed25519.SeedSize))
	require.NoError(t, err)
	l := &fakeLedger{result: &ledger.TxResult{Digest: "D"}}
	c := newTestClient(l)

	res, err := c.Submit(context.Background(), c.BuildPaintPixel("0xgame", 1, 1), id)
	require.NoError(t, err)
	assert.Equal(t, "D", res.Digest)
	require.Len(t, l.executed, 1)
	assert.True(t, l.executed[0].Verify())

	intent, err := l.executed[0].GetIntent()
	require.NoError(t, err)
	assert.Equal(t, id.Address(), intent.Sender)

	_, err = c.Submit(context.Background(), c.BuildPaintPixel("0xgame", 1, 1), nil)
	assert.Error(t, err)
}

func TestEventMatches(t *testing.T) {
	assert.True(t, EventMatches(nil, "0xpkg::pixel_war::Anything"))
	assert.True(t, EventMatches([]string{EventPixelPainted}, "0xpkg::pixel_war::PixelPainted"))
	assert.False(t, EventMatches([]string{EventPixelPainted}, "0xpkg::pixel_war::TeamJoined"))
	assert.False(t, EventMatches([]string{"Painted"}, "0xpkg::pixel_war::PixelPainted"))
}

func TestSubscribeEventsFiltersBySuffix(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req map[string]interface{}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req["id"], "result": 1})
		for _, typ := range []string{"0xpkg::pixel_war::TeamJoined", "0xpkg::pixel_war::PixelPainted"} {
			conn.WriteJSON(map[string]interface{}{
				"method": "suix_subscribeEvent",
				"params": map[string]interface{}{"subscription": 1, "result": map[string]string{"type": typ}},
			})
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	events := ledger.NewClient(srv.URL, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	c := New(Config{PackageID: "0xpkg"}, events, events, nil)

	got := make(chan string, 2)
	unsubscribe, err := c.SubscribeEvents(context.Background(), []string{EventPixelPainted}, func(ev ledger.Event) {
		got <- ev.Type
	})
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case typ := <-got:
		assert.Equal(t, "0xpkg::pixel_war::PixelPainted", typ)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case typ := <-got:
		t.Fatalf("unexpected event %s", typ)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeEventsWithoutSource(t *testing.T) {
	_, err := newTestClient(&fakeLedger{}).SubscribeEvents(context.Background(), nil, func(ledger.Event) {})
	assert.Error(t, err)
}

func TestFormatDisplay(t *testing.T) {
	assert.Equal(t, "0.15", FormatDisplay(150_000_000))
	assert.Equal(t, "1.00", FormatDisplay(1_000_000_000))
	assert.Equal(t, "0.00", FormatDisplay(0))
	assert.Equal(t, "2.99", FormatDisplay(2_999_999_999))
}

func TestParseMinorUnits(t *testing.T) {
	v, err := ParseMinorUnits("0.15")
	require.NoError(t, err)
	assert.Equal(t, uint64(150_000_000), v)

	v, err = ParseMinorUnits("0.1234567899")
	require.NoError(t, err)
	assert.Equal(t, uint64(123_456_789), v)

	for _, bad := range []string{"", "abc", "-1", "1/2", "1e3", "0x10", "99999999999999999999"} {
		_, err := ParseMinorUnits(bad)
		assert.Error(t, err, bad)
	}
}

func TestUnitRoundTrip(t *testing.T) {
	for _, whole := range []uint64{0, 1, 2, 17, 1000} {
		v := whole * MistPerSui
		got, err := ParseMinorUnits(FormatDisplay(v))
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	got, err := ParseMinorUnits(FormatDisplay(150_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(150_000_000), got)

	got, err = ParseMinorUnits(FormatDisplay(123_456_789))
	require.NoError(t, err)
	assert.Equal(t, uint64(120_000_000), got)
}

func TestTeamShares(t *testing.T) {
	r, b := TeamShares(150, 120)
	assert.Equal(t, 56, r)
	assert.Equal(t, 44, b)

	r, b = TeamShares(0, 0)
	assert.Equal(t, 0, r)
	assert.Equal(t, 0, b)
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "10:00", FormatCountdown(10*time.Minute))
	assert.Equal(t, "0:05", FormatCountdown(5900*time.Millisecond))
	assert.Equal(t, "0:00", FormatCountdown(-time.Second))

	snap := types.GameSnapshot{EndTime: time.UnixMilli(60_000)}
	assert.Equal(t, 30*time.Second, TimeRemaining(snap, time.UnixMilli(30_000)))
}
