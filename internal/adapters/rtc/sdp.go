package rtc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"

	"github.com/avoran/gramstream/internal/core"
)

const opusPayloadType = "111"

var errIncompleteDescription = errors.New("local description missing ice/dtls attributes")

// parseDescriptor distills a local SDP into the join payload. Returns
// the bundle mid alongside so the synthesized answer can echo it.
func parseDescriptor(sdpText string, ssrc uint32) (core.JoinDescriptor, string, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(sdpText)); err != nil {
		return core.JoinDescriptor{}, "", err
	}

	desc := core.JoinDescriptor{SSRC: ssrc}
	mid := "0"
	var fp core.Fingerprint

	scan := func(attrs []sdp.Attribute) {
		for _, a := range attrs {
			switch a.Key {
			case "ice-ufrag":
				desc.Ufrag = a.Value
			case "ice-pwd":
				desc.Pwd = a.Value
			case "fingerprint":
				if hash, value, ok := strings.Cut(a.Value, " "); ok {
					fp.Hash = hash
					fp.Fingerprint = value
				}
			case "setup":
				fp.Setup = localSetup(a.Value)
			case "mid":
				mid = a.Value
			}
		}
	}

	scan(sd.Attributes)
	for _, md := range sd.MediaDescriptions {
		scan(md.Attributes)
	}

	if desc.Ufrag == "" || desc.Pwd == "" || fp.Fingerprint == "" {
		return core.JoinDescriptor{}, "", errIncompleteDescription
	}
	desc.Fingerprints = []core.Fingerprint{fp}
	return desc, mid, nil
}

// localSetup maps the offer's actpass role to the role we actually
// take: the server side stays passive.
func localSetup(setup string) string {
	if setup == "actpass" {
		return "active"
	}
	return setup
}

// buildAnswer synthesizes the remote answer from the server's transport
// parameters. The server never speaks SDP itself; this is the client's
// reconstruction of its half of the handshake.
func buildAnswer(params core.RemoteParams, sessionID uint64, mid string) (string, error) {
	tr := params.Transport
	if tr.Ufrag == "" || tr.Pwd == "" || len(tr.Fingerprints) == 0 {
		return "", errors.New("remote params missing ice/dtls attributes")
	}

	attrs := []sdp.Attribute{
		{Key: "mid", Value: mid},
		{Key: "ice-ufrag", Value: tr.Ufrag},
		{Key: "ice-pwd", Value: tr.Pwd},
	}
	for _, fp := range tr.Fingerprints {
		attrs = append(attrs, sdp.Attribute{Key: "fingerprint", Value: fp.Hash + " " + fp.Fingerprint})
		attrs = append(attrs, sdp.Attribute{Key: "setup", Value: remoteSetup(fp.Setup)})
	}
	attrs = append(attrs,
		sdp.Attribute{Key: "rtpmap", Value: opusPayloadType + " opus/48000/2"},
		sdp.Attribute{Key: "fmtp", Value: opusPayloadType + " minptime=10;useinbandfec=1"},
		sdp.Attribute{Key: "rtcp-mux"},
		sdp.Attribute{Key: "recvonly"},
	)
	for _, c := range tr.Candidates {
		attrs = append(attrs, sdp.Attribute{Key: "candidate", Value: candidateLine(c)})
	}

	answer := sdp.SessionDescription{
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      sessionID,
			SessionVersion: 2,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: "0.0.0.0",
		},
		SessionName:      "-",
		TimeDescriptions: []sdp.TimeDescription{{}},
		Attributes: []sdp.Attribute{
			{Key: "group", Value: "BUNDLE " + mid},
			{Key: "ice-lite"},
		},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "audio",
					Port:    sdp.RangedPort{Value: 1},
					Protos:  []string{"UDP", "TLS", "RTP", "SAVPF"},
					Formats: []string{opusPayloadType},
				},
				ConnectionInformation: &sdp.ConnectionInformation{
					NetworkType: "IN",
					AddressType: "IP4",
					Address:     &sdp.Address{Address: "0.0.0.0"},
				},
				Attributes: attrs,
			},
		},
	}

	out, err := answer.Marshal()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// remoteSetup defaults the server role to passive when the parameters
// do not spell it out.
func remoteSetup(setup string) string {
	if setup == "" || setup == "actpass" {
		return "passive"
	}
	return setup
}

func candidateLine(c core.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s %s %s typ %s",
		c.Foundation, c.Component, c.Protocol, c.Priority, c.IP, c.Port, c.Type)
	if c.TCPType != "" {
		fmt.Fprintf(&b, " tcptype %s", c.TCPType)
	}
	if c.Generation != "" {
		fmt.Fprintf(&b, " generation %s", c.Generation)
	}
	return b.String()
}
