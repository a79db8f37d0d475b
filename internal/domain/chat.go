// Package domain contains entities without logic, just meta-data.
package domain

// ChatID identifies the chat room that hosts a group call.
// It is the key of the call directory: at most one session per chat.
type ChatID int64

type PeerKind string

const (
	PeerSelf    PeerKind = "self"
	PeerUser    PeerKind = "user"
	PeerChat    PeerKind = "chat"
	PeerChannel PeerKind = "channel"
)

// InputPeer is a resolved reference to an identity on the platform side.
// The zero value means "join as myself".
type InputPeer struct {
	Kind       PeerKind `json:"kind"`
	ID         int64    `json:"id"`
	AccessHash int64    `json:"access_hash,omitempty"`
}

func (p InputPeer) IsZero() bool {
	return p.Kind == "" || p.Kind == PeerSelf
}

// Self returns the caller's own identity reference.
func Self() InputPeer {
	return InputPeer{Kind: PeerSelf}
}
