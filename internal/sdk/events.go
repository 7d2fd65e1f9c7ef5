package sdk

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"pixelwar.app/pxw/internal/ledger"
	"pixelwar.app/pxw/internal/types"
)

// Contract event names.
const (
	EventPixelPainted = "PixelPainted"
	EventTeamJoined   = "TeamJoined"
	EventGameCreated  = "GameCreated"
	EventGameEnded    = "GameEnded"
)

// EventMatches reports whether an event type passes the allow-list. An
// empty list allows everything.
func EventMatches(allow []string, eventType string) bool {
	if len(allow) == 0 {
		return true
	}
	name := types.ObjectTypeSuffix(eventType)
	for _, a := range allow {
		if a == name {
			return true
		}
	}
	return false
}

// SubscribeEvents streams pixel_war events whose type suffix is in allow
// to onEvent. The returned function stops delivery and must be called.
func (c *Client) SubscribeEvents(ctx context.Context, allow []string, onEvent func(ledger.Event)) (func(), error) {
	if c.events == nil {
		return nil, errors.New("event subscriptions are not configured")
	}

	sub, err := c.events.SubscribeEvents(ctx, ledger.ModuleFilter(c.cfg.PackageID, Module), func(ev ledger.Event) {
		if !EventMatches(allow, ev.Type) {
			return
		}
		onEvent(ev)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("subscribed to contract events", zap.Strings("allow", allow))
	return sub.Close, nil
}
