package domain

// ControlResult is the outcome of a playback control operation.
// Callers must be able to tell "no session for this chat" apart from
// "already in the requested state" and from "state changed".
type ControlResult int

const (
	ControlAbsent  ControlResult = iota // no session/track for this chat
	ControlNoop                         // already in the target state
	ControlChanged                      // state changed
)

func (r ControlResult) String() string {
	switch r {
	case ControlAbsent:
		return "absent"
	case ControlNoop:
		return "noop"
	case ControlChanged:
		return "changed"
	}
	return "unknown"
}

// EditRequest is a participant-scoped mutation. Nil fields are left
// untouched on the remote side; the request is forwarded verbatim and
// never stored.
type EditRequest struct {
	Muted              *bool `json:"muted,omitempty"`
	Volume             *int  `json:"volume,omitempty"`
	RaiseHand          *bool `json:"raise_hand,omitempty"`
	VideoStopped       *bool `json:"video_stopped,omitempty"`
	VideoPaused        *bool `json:"video_paused,omitempty"`
	PresentationPaused *bool `json:"presentation_paused,omitempty"`
}

// JoinOptions tune the join handshake for one stream call.
type JoinOptions struct {
	// JoinAs overrides the identity the call is joined with. Zero value
	// falls back to the chat's default join identity, then to self.
	JoinAs     InputPeer
	Muted      bool
	InviteHash string
}

// StreamOptions are the per-call options of a Stream command.
type StreamOptions struct {
	Join JoinOptions
}
