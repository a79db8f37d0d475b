package core

import (
	"context"
	"encoding/json"

	"github.com/avoran/gramstream/internal/domain"
)

// FullChat is the slice of chat metadata the engine needs: the current
// call descriptor (nil when no call is ongoing) and the chat's default
// join identity, if one is configured.
type FullChat struct {
	Call          *domain.CallHandle
	DefaultJoinAs domain.InputPeer
}

// JoinRequest carries everything the join RPC needs.
type JoinRequest struct {
	Call       domain.CallHandle
	Params     JoinDescriptor
	JoinAs     domain.InputPeer
	Muted      bool
	InviteHash string
}

// UpdateKind discriminates entries of an RPC's returned update list.
type UpdateKind string

const (
	UpdateCallConnection UpdateKind = "call_connection"
	UpdateCallState      UpdateKind = "call_state"
)

// Update is one entry of the update list returned by the join RPC or
// delivered over the push channel.
type Update struct {
	Kind UpdateKind

	// Params is set for UpdateCallConnection: the server's transport
	// parameters as an opaque JSON payload.
	Params json.RawMessage

	// Call is set for UpdateCallState.
	Call *CallUpdate
}

// CallUpdate is a server-pushed call state change.
type CallUpdate struct {
	Chat  domain.ChatID
	Phase domain.CallPhase
}

// SignalingGateway is the engine's view of the platform's RPC surface.
// Implementations own the wire protocol; the engine only invokes typed
// procedures and consumes the push channel.
type SignalingGateway interface {
	// ResolvePeer resolves a chat identifier into an input entity.
	ResolvePeer(ctx context.Context, chat domain.ChatID) (domain.InputPeer, error)

	// FullChat fetches the chat metadata holding the call descriptor.
	FullChat(ctx context.Context, chat domain.ChatID) (*FullChat, error)

	// JoinCall registers a transport endpoint as a call participant and
	// returns the server's update list acknowledging the join.
	JoinCall(ctx context.Context, req JoinRequest) ([]Update, error)

	// LeaveCall deregisters sources from the call. Source 0 means
	// "leave all of my own sources".
	LeaveCall(ctx context.Context, call domain.CallHandle, source uint32) error

	// EditParticipant mutates a participant's state within the call.
	EditParticipant(ctx context.Context, call domain.CallHandle, participant domain.InputPeer, req domain.EditRequest) error

	// OnCallUpdate subscribes to pushed call state changes. Handlers
	// must not block the delivery path.
	OnCallUpdate(fn func(CallUpdate))
}
