package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoran/gramstream/internal/app"
	"github.com/avoran/gramstream/internal/config"
	"github.com/avoran/gramstream/internal/core"
	"github.com/avoran/gramstream/internal/domain"
)

type fakeGateway struct {
	mu    sync.Mutex
	full  *core.FullChat
	edits []domain.EditRequest
}

func (g *fakeGateway) ResolvePeer(ctx context.Context, chat domain.ChatID) (domain.InputPeer, error) {
	return domain.InputPeer{Kind: domain.PeerChannel, ID: int64(chat)}, nil
}

func (g *fakeGateway) FullChat(ctx context.Context, chat domain.ChatID) (*core.FullChat, error) {
	return g.full, nil
}

func (g *fakeGateway) JoinCall(ctx context.Context, req core.JoinRequest) ([]core.Update, error) {
	return []core.Update{
		{Kind: core.UpdateCallConnection, Params: []byte(`{"transport":{}}`)},
	}, nil
}

func (g *fakeGateway) LeaveCall(ctx context.Context, call domain.CallHandle, source uint32) error {
	return nil
}

func (g *fakeGateway) EditParticipant(ctx context.Context, call domain.CallHandle, participant domain.InputPeer, req domain.EditRequest) error {
	g.mu.Lock()
	g.edits = append(g.edits, req)
	g.mu.Unlock()
	return nil
}

func (g *fakeGateway) OnCallUpdate(fn func(core.CallUpdate)) {}

type fakeTransport struct{}

func (t *fakeTransport) Describe(ctx context.Context) (core.JoinDescriptor, error) {
	return core.JoinDescriptor{Ufrag: "u", Pwd: "p", SSRC: 1}, nil
}
func (t *fakeTransport) Accept(params core.RemoteParams) error                    { return nil }
func (t *fakeTransport) Start(ctx context.Context, track webrtc.TrackLocal) error { return nil }
func (t *fakeTransport) OnClosed(fn func())                                       {}
func (t *fakeTransport) Close()                                                   {}

type fakeSource struct {
	mu     sync.Mutex
	paused bool
	muted  bool
}

func (s *fakeSource) SetReadable(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}

func (s *fakeSource) CreateTrack() (webrtc.TrackLocal, error) {
	return webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2,
	}, "audio", "test")
}

func (s *fakeSource) SetPaused(paused bool) { s.mu.Lock(); s.paused = paused; s.mu.Unlock() }
func (s *fakeSource) Paused() bool          { s.mu.Lock(); defer s.mu.Unlock(); return s.paused }
func (s *fakeSource) SetMuted(muted bool)   { s.mu.Lock(); s.muted = muted; s.mu.Unlock() }
func (s *fakeSource) Muted() bool           { s.mu.Lock(); defer s.mu.Unlock(); return s.muted }
func (s *fakeSource) Finished() bool        { return false }
func (s *fakeSource) Stop()                 {}
func (s *fakeSource) OnFinish(fn func())    {}
func (s *fakeSource) OnError(fn func(error)) {}

func newTestRouter(t *testing.T, gw *fakeGateway) *gin.Engine {
	t.Helper()
	eng := app.NewStreamer(gw,
		func() (core.MediaTransport, error) { return &fakeTransport{}, nil },
		func() (core.MediaSource, error) { return &fakeSource{}, nil },
		app.StayPolicy{},
	)
	return SetupRouter(&config.Config{Mode: "release"}, eng)
}

func activeCall() *core.FullChat {
	return &core.FullChat{Call: &domain.CallHandle{ID: 777, AccessHash: 888}}
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func mediaFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.ogg")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	return path
}

func TestStreamRejectsBadChatParam(t *testing.T) {
	r := newTestRouter(t, &fakeGateway{full: activeCall()})
	w := do(r, http.MethodPost, "/api/calls/abc/stream", gin.H{"path": mediaFile(t)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamRejectsMissingPath(t *testing.T) {
	r := newTestRouter(t, &fakeGateway{full: activeCall()})
	w := do(r, http.MethodPost, "/api/calls/42/stream", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamRejectsUnreadableFile(t *testing.T) {
	r := newTestRouter(t, &fakeGateway{full: activeCall()})
	w := do(r, http.MethodPost, "/api/calls/42/stream", gin.H{"path": "/no/such/file.ogg"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamNoActiveCallConflicts(t *testing.T) {
	r := newTestRouter(t, &fakeGateway{full: &core.FullChat{}})
	w := do(r, http.MethodPost, "/api/calls/42/stream", gin.H{"path": mediaFile(t)})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStreamAndStatus(t *testing.T) {
	r := newTestRouter(t, &fakeGateway{full: activeCall()})

	w := do(r, http.MethodPost, "/api/calls/42/stream", gin.H{"path": mediaFile(t)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"streaming":true}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/calls/42", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status struct {
		State     string `json:"state"`
		Connected bool   `json:"connected"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "active", status.State)
	assert.True(t, status.Connected)
}

func TestStatusUntracked(t *testing.T) {
	r := newTestRouter(t, &fakeGateway{full: activeCall()})
	w := do(r, http.MethodGet, "/api/calls/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestControlEndpoints(t *testing.T) {
	r := newTestRouter(t, &fakeGateway{full: activeCall()})

	w := do(r, http.MethodPost, "/api/calls/42/pause", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusOK,
		do(r, http.MethodPost, "/api/calls/42/stream", gin.H{"path": mediaFile(t)}).Code)

	w = do(r, http.MethodPost, "/api/calls/42/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"changed":true}`, w.Body.String())

	// Pausing twice is a no-op.
	w = do(r, http.MethodPost, "/api/calls/42/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"changed":false}`, w.Body.String())

	w = do(r, http.MethodPost, "/api/calls/42/mute", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"changed":true}`, w.Body.String())
}

func TestStopEndpoint(t *testing.T) {
	r := newTestRouter(t, &fakeGateway{full: activeCall()})

	w := do(r, http.MethodPost, "/api/calls/42/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stopped":false}`, w.Body.String())

	require.Equal(t, http.StatusOK,
		do(r, http.MethodPost, "/api/calls/42/stream", gin.H{"path": mediaFile(t)}).Code)

	w = do(r, http.MethodPost, "/api/calls/42/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"stopped":true}`, w.Body.String())
}

func TestVolumeValidation(t *testing.T) {
	r := newTestRouter(t, &fakeGateway{full: activeCall()})
	require.Equal(t, http.StatusOK,
		do(r, http.MethodPost, "/api/calls/42/stream", gin.H{"path": mediaFile(t)}).Code)

	w := do(r, http.MethodPost, "/api/calls/42/volume", gin.H{
		"participant": gin.H{"kind": "user", "id": 3},
		"volume":      0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/calls/42/volume", gin.H{
		"participant": gin.H{"kind": "user", "id": 3},
		"volume":      5000,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"edited":true}`, w.Body.String())
}

func TestEditWithoutSessionIsNoop(t *testing.T) {
	gw := &fakeGateway{full: activeCall()}
	r := newTestRouter(t, gw)

	w := do(r, http.MethodPost, "/api/calls/42/participants", gin.H{
		"participant": gin.H{"kind": "user", "id": 3},
		"edit":        gin.H{"muted": true},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"edited":false}`, w.Body.String())
	assert.Empty(t, gw.edits)
}
