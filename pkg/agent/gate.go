package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relkin/staffportal/internal/model"
	"github.com/relkin/staffportal/pkg/identity"
)

// groupSyncTimeout caps how long a joining player waits for permission
// groups. Past it the player joins without them rather than hanging at
// the loading screen.
const groupSyncTimeout = time.Second

// GateResult is the join gate's verdict for one connecting player.
type GateResult struct {
	Allowed bool
	Message string
}

// Deferral is the pending-connection surface the game server exposes
// while the gate runs. Update changes the text the waiting player sees,
// Done admits them, Reject drops the connection with a message. Exactly
// one of Done or Reject is called, after which the deferral is spent.
type Deferral interface {
	Update(message string)
	Done()
	Reject(message string)
}

// RunGate drives a connecting player through the join gate, keeping the
// deferral's progress text current so the player never stares at a
// frozen loading screen.
func (client *Client) RunGate(ctx context.Context, player Player, deferral Deferral) {
	result := client.admit(ctx, player, deferral.Update)
	if !result.Allowed {
		deferral.Reject(result.Message)
		return
	}
	deferral.Done()
}

// AdmitPlayer runs a connecting player through the join gate: identity
// check, central registration, ban check, then permission sync. The
// authority being unreachable fails open; only a positive ban answer or
// a missing Discord identity keeps a player out.
func (client *Client) AdmitPlayer(ctx context.Context, player Player) GateResult {
	return client.admit(ctx, player, func(string) {})
}

func (client *Client) admit(ctx context.Context, player Player, progress func(string)) GateResult {
	progress("Checking your identity...")
	id, ok := identity.Resolve(player.Identifiers)
	if !ok {
		return GateResult{
			Allowed: false,
			Message: "You need to link your Discord account to join this server.",
		}
	}

	progress("Registering with the staff portal...")
	err := client.Call(ctx, model.EventAddUser, model.AddUserRequest{
		Id:          id,
		Name:        player.Name,
		Identifiers: player.Identifiers,
	}, nil)
	if err != nil {
		client.Log.Warn("player registration failed, continuing", zap.String("id", id), zap.Error(err))
	}

	progress("Checking ban status...")
	var status model.BanStatus
	err = client.Call(ctx, model.EventGetBanned, model.IdentityRequest{Id: id}, &status)
	if err != nil {
		client.Log.Warn("ban check failed, admitting", zap.String("id", id), zap.Error(err))
	} else if status.Banned {
		message := banMessage(status.Reason)
		if status.Expiry != nil {
			message = fmt.Sprintf("%s\nExpires: %s", message, status.Expiry.UTC().Format(time.RFC1123))
		}
		return GateResult{Allowed: false, Message: message}
	}

	progress("Syncing permissions...")
	client.syncGroups(ctx, id)

	return GateResult{Allowed: true}
}

// PlayerDropped reports the disconnect to the authority and revokes the
// identity's permission groups. The authority's current view of the
// groups is fetched at drop time so grants that changed mid-session are
// revoked too; the set recorded at join is the fallback when the lookup
// fails.
func (client *Client) PlayerDropped(player Player, reason string) {
	id, ok := identity.Resolve(player.Identifiers)
	if !ok {
		return
	}

	err := client.Emit(model.EventAddRecentPlayer, model.RecentPlayerRequest{
		Identifier: client.identifier,
		Id:         id,
		Name:       player.Name,
		Reason:     reason,
	})
	if err != nil {
		client.Log.Debug("recent player report failed", zap.String("id", id), zap.Error(err))
	}

	client.grantedMu.Lock()
	groups := client.granted[id]
	delete(client.granted, id)
	client.grantedMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), groupSyncTimeout)
	defer cancel()

	var resp model.AceGroupsResponse
	err = client.Call(ctx, model.EventGetAceGroups, model.IdentityRequest{Id: id}, &resp)
	if err != nil {
		client.Log.Debug("ace group lookup failed, revoking groups granted at join", zap.String("id", id), zap.Error(err))
	} else {
		groups = resp.Groups
	}

	for _, group := range groups {
		client.Host.RevokeGroup(id, group)
	}
}

func (client *Client) syncGroups(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(ctx, groupSyncTimeout)
	defer cancel()

	var resp model.AceGroupsResponse
	err := client.Call(ctx, model.EventGetAceGroups, model.IdentityRequest{Id: id}, &resp)
	if err != nil {
		client.Log.Warn("permission sync timed out, player joins without groups", zap.String("id", id), zap.Error(err))
		return
	}

	for _, group := range resp.Groups {
		client.Host.GrantGroup(id, group)
	}

	client.grantedMu.Lock()
	client.granted[id] = resp.Groups
	client.grantedMu.Unlock()
}

func kickMessage(reason string) string {
	return fmt.Sprintf("You have been kicked from the server.\nReason: %s\nIf you believe this is a mistake, contact the staff team.", reason)
}

func banMessage(reason string) string {
	return fmt.Sprintf("You are banned from this server.\nReason: %s\nAppeal on our Discord if you believe this is a mistake.", reason)
}
