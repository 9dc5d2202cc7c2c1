package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/pkg/identity"
)

var (
	ErrUnknownTarget = errors.New("agent: target player has no linked identity")
	ErrRejected      = errors.New("agent: authority rejected the action")
	ErrBadLength     = errors.New("agent: invalid ban length")
)

// ParseBanLength turns staff shorthand into a length in hours. A bare
// number or an "h" suffix means hours, a "d" suffix means days, and zero
// in any form means permanent.
func ParseBanLength(raw string) (int, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return 0, ErrBadLength
	}

	multiplier := 1
	switch {
	case strings.HasSuffix(raw, "d"):
		multiplier = 24
		raw = strings.TrimSuffix(raw, "d")
	case strings.HasSuffix(raw, "h"):
		raw = strings.TrimSuffix(raw, "h")
	}

	hours, err := strconv.Atoi(raw)
	if err != nil || hours < 0 {
		return 0, ErrBadLength
	}

	return hours * multiplier, nil
}

// Warn relays an in-game warn issued by staff against target.
func (client *Client) Warn(ctx context.Context, staff Player, target Player, reason string) error {
	return client.moderate(ctx, model.EventAddWarn, staff, target, reason, 0)
}

// Kick relays an in-game kick. The authority decides whether the drop
// reaches this endpoint back over the relay.
func (client *Client) Kick(ctx context.Context, staff Player, target Player, reason string) error {
	return client.moderate(ctx, model.EventAddKick, staff, target, reason, 0)
}

// Ban relays an in-game ban. Length is in hours; zero is permanent.
func (client *Client) Ban(ctx context.Context, staff Player, target Player, reason string, length int) error {
	if length < 0 {
		return ErrBadLength
	}
	return client.moderate(ctx, model.EventAddBan, staff, target, reason, length)
}

// Commend relays a commendation toward the target's trust score.
func (client *Client) Commend(ctx context.Context, staff Player, target Player, reason string) error {
	return client.moderate(ctx, model.EventAddCommend, staff, target, reason, 0)
}

// Trustscore fetches the issuer's own score, or the target's when target
// is non-nil.
func (client *Client) Trustscore(ctx context.Context, issuer Player, target *Player) (int, error) {
	issuerId, ok := identity.Resolve(issuer.Identifiers)
	if !ok {
		return 0, ErrUnknownTarget
	}

	req := model.TrustscoreRequest{Id: issuerId}
	if target != nil {
		targetId, ok := identity.Resolve(target.Identifiers)
		if !ok {
			return 0, ErrUnknownTarget
		}
		req.TargetId = targetId
	}

	var resp model.TrustscoreResponse
	if err := client.Call(ctx, model.EventGetTrustscore, req, &resp); err != nil {
		return 0, err
	}

	return resp.Trustscore, nil
}

func (client *Client) moderate(ctx context.Context, event string, staff Player, target Player, reason string, length int) error {
	staffId, ok := identity.Resolve(staff.Identifiers)
	if !ok {
		return ErrUnknownTarget
	}
	targetId, ok := identity.Resolve(target.Identifiers)
	if !ok {
		return ErrUnknownTarget
	}

	req := model.ModerationRequest{
		Staff:  staffId,
		Id:     targetId,
		Reason: reason,
		Length: length,
	}

	var ack model.AckResponse
	if err := client.Call(ctx, event, req, &ack); err != nil {
		return err
	}
	if !ack.Ok {
		return fmt.Errorf("%w: %s", ErrRejected, event)
	}

	return nil
}
