package core

import "errors"

var (
	// ErrNoActiveCall means the chat has no ongoing group call at join
	// time. Fatal to that join attempt.
	ErrNoActiveCall = errors.New("no active group call")

	// ErrNoTransportParams means the join acknowledgment did not carry
	// the server's transport parameters.
	ErrNoTransportParams = errors.New("join ack missing transport params")

	// ErrNotGroupChat means the resolved peer cannot host a group call
	// (e.g. a plain user).
	ErrNotGroupChat = errors.New("peer cannot host a group call")

	// ErrGatewayClosed means the signaling connection went away while a
	// request was pending.
	ErrGatewayClosed = errors.New("signaling gateway closed")
)
