package rtc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoran/gramstream/internal/core"
)

const offerSDP = "v=0\r\n" +
	"o=- 4611731400430051336 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"a=group:BUNDLE 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=mid:0\r\n" +
	"a=ice-ufrag:aBcD\r\n" +
	"a=ice-pwd:secretpwdsecretpwdsecret\r\n" +
	"a=fingerprint:sha-256 AA:BB:CC:DD:EE:FF:00:11:22:33:44:55:66:77:88:99:AA:BB:CC:DD:EE:FF:00:11:22:33:44:55:66:77:88:99\r\n" +
	"a=setup:actpass\r\n" +
	"a=sendonly\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n"

func TestParseDescriptor(t *testing.T) {
	desc, mid, err := parseDescriptor(offerSDP, 1234)
	require.NoError(t, err)

	assert.Equal(t, "aBcD", desc.Ufrag)
	assert.Equal(t, "secretpwdsecretpwdsecret", desc.Pwd)
	assert.Equal(t, uint32(1234), desc.SSRC)
	assert.Equal(t, "0", mid)

	require.Len(t, desc.Fingerprints, 1)
	fp := desc.Fingerprints[0]
	assert.Equal(t, "sha-256", fp.Hash)
	assert.True(t, strings.HasPrefix(fp.Fingerprint, "AA:BB:CC"))
	// The offer is actpass; we take the active role.
	assert.Equal(t, "active", fp.Setup)
}

func TestParseDescriptorIncomplete(t *testing.T) {
	bare := "v=0\r\n" +
		"o=- 1 2 IN IP4 127.0.0.1\r\n" +
		"s=-\r\n" +
		"t=0 0\r\n" +
		"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
		"c=IN IP4 0.0.0.0\r\n" +
		"a=mid:0\r\n"
	_, _, err := parseDescriptor(bare, 1)
	require.ErrorIs(t, err, errIncompleteDescription)
}

func remoteParamsFixture() core.RemoteParams {
	var p core.RemoteParams
	p.Transport.Ufrag = "srvUfrag"
	p.Transport.Pwd = "srvPwd"
	p.Transport.Fingerprints = []core.Fingerprint{
		{Hash: "sha-256", Setup: "passive", Fingerprint: "11:22:33"},
	}
	p.Transport.Candidates = []core.Candidate{
		{
			Generation: "0",
			Component:  "1",
			Protocol:   "udp",
			Port:       "3478",
			IP:         "203.0.113.10",
			Foundation: "1",
			Priority:   "2130706431",
			Type:       "host",
		},
	}
	return p
}

func TestBuildAnswer(t *testing.T) {
	out, err := buildAnswer(remoteParamsFixture(), 42, "0")
	require.NoError(t, err)

	assert.Contains(t, out, "a=ice-ufrag:srvUfrag")
	assert.Contains(t, out, "a=ice-pwd:srvPwd")
	assert.Contains(t, out, "a=fingerprint:sha-256 11:22:33")
	assert.Contains(t, out, "a=setup:passive")
	assert.Contains(t, out, "a=group:BUNDLE 0")
	assert.Contains(t, out, "a=mid:0")
	assert.Contains(t, out, "a=candidate:1 1 udp 2130706431 203.0.113.10 3478 typ host generation 0")
	assert.Contains(t, out, "a=recvonly")
	assert.Contains(t, out, "m=audio 1 UDP/TLS/RTP/SAVPF 111")
}

func TestBuildAnswerMissingParams(t *testing.T) {
	_, err := buildAnswer(core.RemoteParams{}, 1, "0")
	require.Error(t, err)
}

func TestRemoteSetupDefaultsToPassive(t *testing.T) {
	assert.Equal(t, "passive", remoteSetup(""))
	assert.Equal(t, "passive", remoteSetup("actpass"))
	assert.Equal(t, "active", remoteSetup("active"))
}

func TestCandidateLineTCP(t *testing.T) {
	line := candidateLine(core.Candidate{
		Foundation: "2",
		Component:  "1",
		Protocol:   "tcp",
		Priority:   "1",
		IP:         "203.0.113.10",
		Port:       "443",
		Type:       "relay",
		TCPType:    "passive",
	})
	assert.Equal(t, "2 1 tcp 1 203.0.113.10 443 typ relay tcptype passive", line)
}
