// Package rtc is the pion-webrtc media transport. It owns the
// PeerConnection of one call session: local parameter gathering for the
// join handshake, completion from the server's parameters, and the
// outbound track.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pion/randutil"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avoran/gramstream/internal/core"
)

type Transport struct {
	pc     *webrtc.PeerConnection
	rand   randutil.MathRandomGenerator
	ssrc   uint32
	mid    string
	cancel context.CancelFunc

	onClosed func()
}

func DefaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

func NewTransport(cfg webrtc.Configuration) (*Transport, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	// The offer needs an audio section before any track exists; the
	// later AddTrack reuses this transceiver.
	if _, err := pc.AddTransceiverFromKind(
		webrtc.RTPCodecTypeAudio,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionSendonly},
	); err != nil {
		_ = pc.Close()
		return nil, err
	}
	return &Transport{pc: pc, rand: randutil.NewMathRandomGenerator()}, nil
}

// OnClosed sets a callback fired when the peer connection dies.
func (t *Transport) OnClosed(fn func()) { t.onClosed = fn }

// Describe implements core.MediaTransport: create the local offer, wait
// for ICE gathering to complete and distill the description into the
// join payload.
func (t *Transport) Describe(ctx context.Context) (core.JoinDescriptor, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return core.JoinDescriptor{}, fmt.Errorf("create offer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return core.JoinDescriptor{}, fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return core.JoinDescriptor{}, ctx.Err()
	}

	t.ssrc = t.rand.Uint32()
	desc, mid, err := parseDescriptor(t.pc.LocalDescription().SDP, t.ssrc)
	if err != nil {
		return core.JoinDescriptor{}, fmt.Errorf("parse local description: %w", err)
	}
	t.mid = mid
	return desc, nil
}

// Accept implements core.MediaTransport: synthesize the remote answer
// from the server's transport parameters and apply it.
func (t *Transport) Accept(params core.RemoteParams) error {
	sdpText, err := buildAnswer(params, uint64(t.rand.Uint32()), t.mid)
	if err != nil {
		return fmt.Errorf("build answer: %w", err)
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdpText}
	if err := t.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// Start implements core.MediaTransport: attach the local track and wire
// connection-state handling. The drain goroutine lives until Close or
// ICE failure, not until the caller's context ends.
func (t *Transport) Start(_ context.Context, track webrtc.TrackLocal) error {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	t.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateDisconnected ||
			s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	t.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer_connection_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			if t.onClosed != nil {
				t.onClosed()
			}
		}
	})

	sender, err := t.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	go drainRTCP(ctx, sender)
	return nil
}

// drainRTCP keeps the interceptor chain fed; sender reports are not
// consumed anywhere else.
func drainRTCP(ctx context.Context, sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := sender.Read(buf); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Debug().Err(err).Str("module", "rtc").Msg("rtcp read")
			}
			return
		}
	}
}

func (t *Transport) Close() {
	if t.cancel != nil {
		t.cancel()
	}
	if err := t.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Msg("closed")
	}
}
