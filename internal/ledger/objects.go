package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"pixelwar.app/pxw/internal/types"
)

// MoveContent is the parsed content of a Move object.
type MoveContent struct {
	DataType string          `json:"dataType"`
	Type     string          `json:"type"`
	Fields   json.RawMessage `json:"fields"`
}

// ObjectData is the subset of an object response pxw uses.
type ObjectData struct {
	ObjectID string       `json:"objectId"`
	Version  string       `json:"version"`
	Type     string       `json:"type"`
	Content  *MoveContent `json:"content"`
}

type objectResponse struct {
	Data  *ObjectData `json:"data"`
	Error *struct {
		Code     string `json:"code"`
		ObjectID string `json:"object_id"`
	} `json:"error"`
}

// DynamicFieldName addresses a dynamic field by its key type and value.
type DynamicFieldName struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

var objectOptions = map[string]bool{
	"showContent": true,
	"showType":    true,
}

// GetObject fetches an object with its content.
func (c *Client) GetObject(ctx context.Context, id string) (*ObjectData, error) {
	var resp objectResponse
	if err := c.call(ctx, "sui_getObject", []interface{}{id, objectOptions}, &resp); err != nil {
		return nil, err
	}
	return unwrapObject(id, resp)
}

// GetDynamicFieldObject fetches the dynamic field of parent keyed by name.
func (c *Client) GetDynamicFieldObject(ctx context.Context, parent string, name DynamicFieldName) (*ObjectData, error) {
	var resp objectResponse
	if err := c.call(ctx, "suix_getDynamicFieldObject", []interface{}{parent, name}, &resp); err != nil {
		return nil, err
	}
	return unwrapObject(parent+"/"+name.Value, resp)
}

func unwrapObject(id string, resp objectResponse) (*ObjectData, error) {
	if resp.Error != nil {
		return nil, fmt.Errorf("object %s does not exist (%s): %w", id, resp.Error.Code, ErrObjectNotFound)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("object %s: %w", id, ErrObjectNotFound)
	}
	if resp.Data.Content == nil || resp.Data.Content.DataType != "moveObject" || len(resp.Data.Content.Fields) == 0 {
		return nil, fmt.Errorf("object %s has no move content: %w", id, ErrMalformedObject)
	}
	return resp.Data, nil
}

// gameFields are the named fields every Game object must carry.
var gameFields = []string{
	"game_number", "canvas_width", "canvas_height", "start_time", "end_time",
	"is_active", "prize_pool", "red_team_pixels", "blue_team_pixels",
}

// DecodeGame turns the fields of a Game object into a snapshot. Numeric
// fields may be decimal strings or JSON integers; anything else is
// rejected.
func DecodeGame(raw json.RawMessage) (types.GameSnapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return types.GameSnapshot{}, fmt.Errorf("game fields: %v: %w", err, ErrMalformedObject)
	}
	for _, name := range gameFields {
		if _, ok := fields[name]; !ok {
			return types.GameSnapshot{}, fmt.Errorf("game field %s missing: %w", name, ErrMalformedObject)
		}
	}

	var snap types.GameSnapshot
	var err error
	u := func(name string) uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = decodeUint(name, fields[name])
		return v
	}

	snap.GameNumber = u("game_number")
	width := u("canvas_width")
	height := u("canvas_height")
	start := u("start_time")
	end := u("end_time")
	snap.PrizePool = u("prize_pool")
	snap.RedPixels = u("red_team_pixels")
	snap.BluePixels = u("blue_team_pixels")
	if err != nil {
		return types.GameSnapshot{}, err
	}
	if width > 1<<32-1 || height > 1<<32-1 {
		return types.GameSnapshot{}, fmt.Errorf("canvas size %dx%d out of range: %w", width, height, ErrMalformedObject)
	}
	if end < start {
		return types.GameSnapshot{}, fmt.Errorf("end_time %d before start_time %d: %w", end, start, ErrMalformedObject)
	}

	if err := json.Unmarshal(fields["is_active"], &snap.IsActive); err != nil {
		return types.GameSnapshot{}, fmt.Errorf("game field is_active: %v: %w", err, ErrMalformedObject)
	}

	snap.CanvasWidth = uint32(width)
	snap.CanvasHeight = uint32(height)
	snap.StartTime = types.MillisToTime(start)
	snap.EndTime = types.MillisToTime(end)
	return snap, nil
}

// DecodePlayer reads a player side record. The record may be the value of
// a dynamic field wrapper ({"name":..., "value":{"fields":{...}}}) or the
// bare struct fields. Only team is required.
func DecodePlayer(raw json.RawMessage) (types.PlayerSelection, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return types.PlayerSelection{}, fmt.Errorf("player fields: %v: %w", err, ErrMalformedObject)
	}

	if value, ok := fields["value"]; ok {
		var wrapped struct {
			Fields map[string]json.RawMessage `json:"fields"`
		}
		if err := json.Unmarshal(value, &wrapped); err == nil && wrapped.Fields != nil {
			fields = wrapped.Fields
		}
	}

	teamRaw, ok := fields["team"]
	if !ok {
		return types.PlayerSelection{}, fmt.Errorf("player field team missing: %w", ErrMalformedObject)
	}
	team, err := decodeUint("team", teamRaw)
	if err != nil {
		return types.PlayerSelection{}, err
	}
	if !types.Team(team).Valid() || team > 255 {
		return types.PlayerSelection{}, fmt.Errorf("player team %d: %w", team, ErrMalformedObject)
	}

	sel := types.PlayerSelection{Team: types.Team(team)}
	if v, ok := fields["stake_amount"]; ok {
		if sel.StakeAmount, err = decodeUint("stake_amount", v); err != nil {
			return types.PlayerSelection{}, err
		}
	}
	if v, ok := fields["pixels_painted"]; ok {
		if sel.PixelsPainted, err = decodeUint("pixels_painted", v); err != nil {
			return types.PlayerSelection{}, err
		}
	}
	if v, ok := fields["has_claimed"]; ok {
		if err := json.Unmarshal(v, &sel.HasClaimed); err != nil {
			return types.PlayerSelection{}, fmt.Errorf("player field has_claimed: %v: %w", err, ErrMalformedObject)
		}
	}
	return sel, nil
}

// decodeUint accepts "123" or 123.
func decodeUint(name string, raw json.RawMessage) (uint64, error) {
	raw = bytes.TrimSpace(raw)
	text := string(raw)
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("field %s: %v: %w", name, err, ErrMalformedObject)
		}
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %q is not an unsigned integer: %w", name, text, ErrMalformedObject)
	}
	return v, nil
}
