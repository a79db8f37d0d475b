package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalTransport(t *testing.T) *Transport {
	t.Helper()
	// No ICE servers: gathering completes on host candidates alone.
	tr, err := NewTransport(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	return tr
}

func TestDescribeGathersLocalParams(t *testing.T) {
	tr := newLocalTransport(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	desc, err := tr.Describe(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, desc.Ufrag)
	assert.NotEmpty(t, desc.Pwd)
	require.Len(t, desc.Fingerprints, 1)
	assert.Equal(t, "active", desc.Fingerprints[0].Setup)
	assert.NotZero(t, desc.SSRC)
	assert.NotEmpty(t, tr.mid)
}

func TestStartOutlivesCallerContext(t *testing.T) {
	tr := newLocalTransport(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := tr.Describe(ctx)
	require.NoError(t, err)

	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2,
	}, "audio", "test")
	require.NoError(t, err)

	// An HTTP request context may be dead by the time the session
	// streams; Start must not tie anything to it.
	reqCtx, reqCancel := context.WithCancel(context.Background())
	reqCancel()
	require.NoError(t, tr.Start(reqCtx, track))
}
