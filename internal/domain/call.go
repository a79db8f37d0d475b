package domain

// CallHandle is the opaque descriptor of a remote group-call object.
// Every leave/edit request against a call carries it. A handle is owned
// by exactly one session and becomes invalid on leave or discard.
type CallHandle struct {
	ID         int64 `json:"id"`
	AccessHash int64 `json:"access_hash"`
}

// SessionState is the lifecycle state of one chat's call session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateJoining
	StateActive
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateJoining:
		return "joining"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// CallPhase is the server-side state of a group call as reported by
// push updates.
type CallPhase string

const (
	CallOngoing   CallPhase = "ongoing"
	CallDiscarded CallPhase = "discarded"
)
