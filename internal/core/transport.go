package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Fingerprint is one DTLS certificate fingerprint of an endpoint.
type Fingerprint struct {
	Hash        string `json:"hash"`
	Setup       string `json:"setup"`
	Fingerprint string `json:"fingerprint"`
}

// JoinDescriptor is the locally produced half of the transport exchange.
// It lives only for the duration of the handshake.
type JoinDescriptor struct {
	Ufrag        string        `json:"ufrag"`
	Pwd          string        `json:"pwd"`
	Fingerprints []Fingerprint `json:"fingerprints"`
	SSRC         uint32        `json:"ssrc"`
}

// Candidate is one remote ICE candidate from the server's parameters.
type Candidate struct {
	Generation string `json:"generation"`
	Component  string `json:"component"`
	Protocol   string `json:"protocol"`
	Port       string `json:"port"`
	IP         string `json:"ip"`
	Foundation string `json:"foundation"`
	Priority   string `json:"priority"`
	Type       string `json:"type"`
	Network    string `json:"network"`
	TCPType    string `json:"tcptype,omitempty"`
}

// RemoteParams is the server's half of the transport exchange, decoded
// from the join acknowledgment.
type RemoteParams struct {
	Transport struct {
		Ufrag        string        `json:"ufrag"`
		Pwd          string        `json:"pwd"`
		Fingerprints []Fingerprint `json:"fingerprints"`
		Candidates   []Candidate   `json:"candidates"`
	} `json:"transport"`
}

// MediaTransport performs the transport-level half of a call membership.
// One instance per session; never reused after Close.
type MediaTransport interface {
	// Describe gathers local candidates and returns the parameters to
	// be offered in the join RPC.
	Describe(ctx context.Context) (JoinDescriptor, error)
	// Accept feeds the server's parameters back to complete the
	// handshake.
	Accept(params RemoteParams) error
	// Start attaches the local track and begins sending.
	Start(ctx context.Context, track webrtc.TrackLocal) error
	// OnClosed registers a callback fired when the underlying
	// connection dies. Must be set before Start.
	OnClosed(fn func())
	// Close stops all underlying transport resources.
	Close()
}

// TransportFactory builds a fresh MediaTransport for one session.
type TransportFactory func() (MediaTransport, error)
