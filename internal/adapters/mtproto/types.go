package mtproto

import (
	"encoding/json"

	"github.com/avoran/gramstream/internal/domain"
)

// Wire frames. A request carries an id and is answered by exactly one
// response with the same id; frames without an id are pushed updates.

type request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return e.Message }

type frame struct {
	ID     string          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
	Update json.RawMessage `json:"update,omitempty"`
}

type wireUpdate struct {
	Type string `json:"type"`

	// groupCall
	ChatID int64  `json:"chat_id,omitempty"`
	State  string `json:"state,omitempty"`

	// groupCallConnection
	Params json.RawMessage `json:"params,omitempty"`
}

type fullChatResult struct {
	Call          *domain.CallHandle `json:"call"`
	DefaultJoinAs domain.InputPeer   `json:"default_join_as"`
}

type joinCallParams struct {
	Call       domain.CallHandle `json:"call"`
	Params     dataJSON          `json:"params"`
	JoinAs     domain.InputPeer  `json:"join_as"`
	Muted      bool              `json:"muted"`
	InviteHash string            `json:"invite_hash,omitempty"`
}

// dataJSON mirrors the platform's envelope for opaque JSON payloads:
// the descriptor travels as a serialized string, not a nested object.
type dataJSON struct {
	Data string `json:"data"`
}

type joinCallResult struct {
	Updates []wireUpdate `json:"updates"`
}

type leaveCallParams struct {
	Call   domain.CallHandle `json:"call"`
	Source uint32            `json:"source"`
}

type editParticipantParams struct {
	Call        domain.CallHandle  `json:"call"`
	Participant domain.InputPeer   `json:"participant"`
	Edit        domain.EditRequest `json:"edit"`
}

type resolvePeerParams struct {
	ChatID int64 `json:"chat_id"`
}
