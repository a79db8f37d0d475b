package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/avoran/gramstream/internal/core"
	"github.com/avoran/gramstream/internal/domain"
)

// joiner drives the multi-step join/leave handshake against the
// signaling gateway. It owns no state; everything it touches belongs to
// the session whose lock is held by the caller.
type joiner struct {
	gw core.SignalingGateway
}

// join performs: resolve peer → fetch call descriptor → offer local
// transport params → scan the ack for the server's params → complete
// the transport handshake. Returns the call handle on success.
func (j *joiner) join(
	ctx context.Context,
	chat domain.ChatID,
	transport core.MediaTransport,
	opts domain.JoinOptions,
) (domain.CallHandle, error) {
	peer, err := j.gw.ResolvePeer(ctx, chat)
	if err != nil {
		return domain.CallHandle{}, fmt.Errorf("resolve peer: %w", err)
	}
	if peer.Kind != domain.PeerChat && peer.Kind != domain.PeerChannel {
		return domain.CallHandle{}, fmt.Errorf("%w: peer kind %q", core.ErrNotGroupChat, peer.Kind)
	}

	full, err := j.gw.FullChat(ctx, chat)
	if err != nil {
		return domain.CallHandle{}, fmt.Errorf("full chat: %w", err)
	}
	if full.Call == nil {
		return domain.CallHandle{}, core.ErrNoActiveCall
	}

	desc, err := transport.Describe(ctx)
	if err != nil {
		return domain.CallHandle{}, fmt.Errorf("local transport params: %w", err)
	}

	req := core.JoinRequest{
		Call:       *full.Call,
		Params:     desc,
		JoinAs:     resolveJoinAs(opts.JoinAs, full.DefaultJoinAs),
		Muted:      opts.Muted,
		InviteHash: opts.InviteHash,
	}
	updates, err := j.gw.JoinCall(ctx, req)
	if err != nil {
		return domain.CallHandle{}, fmt.Errorf("join call: %w", err)
	}

	// The RPC's direct result does not reliably carry the server's
	// transport parameters; the connection update in the ack list does.
	remote, ok := connectionParams(updates)
	if !ok {
		return domain.CallHandle{}, core.ErrNoTransportParams
	}

	var params core.RemoteParams
	if err := json.Unmarshal(remote, &params); err != nil {
		return domain.CallHandle{}, fmt.Errorf("decode transport params: %w", err)
	}
	if err := transport.Accept(params); err != nil {
		return domain.CallHandle{}, fmt.Errorf("accept transport params: %w", err)
	}

	log.Info().
		Str("module", "app.join").
		Int64("chat", int64(chat)).
		Uint32("ssrc", desc.SSRC).
		Msg("handshake complete")
	return *full.Call, nil
}

// leave deregisters all of our own sources from the call.
func (j *joiner) leave(ctx context.Context, call domain.CallHandle) error {
	return j.gw.LeaveCall(ctx, call, 0)
}

// resolveJoinAs applies the identity precedence: explicit override,
// then the chat's configured default join identity, then self.
func resolveJoinAs(override, chatDefault domain.InputPeer) domain.InputPeer {
	if !override.IsZero() {
		return override
	}
	if !chatDefault.IsZero() {
		return chatDefault
	}
	return domain.Self()
}

func connectionParams(updates []core.Update) (json.RawMessage, bool) {
	for _, u := range updates {
		if u.Kind == core.UpdateCallConnection && len(u.Params) > 0 {
			return u.Params, true
		}
	}
	return nil, false
}
