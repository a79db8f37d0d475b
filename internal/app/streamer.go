package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avoran/gramstream/internal/core"
	"github.com/avoran/gramstream/internal/domain"
)

const closeLeaveTimeout = 5 * time.Second

// Streamer is the engine's public command surface. It owns the call
// directory and drives the session lifecycle.
type Streamer struct {
	gw           core.SignalingGateway
	newTransport core.TransportFactory
	newSource    core.SourceFactory
	joiner       joiner
	dir          *Directory
	policy       FinishPolicy

	onStreamFinish func(domain.ChatID)
	onStreamError  func(domain.ChatID, error)
}

// NewStreamer wires the engine and subscribes to the gateway's push
// channel. The subscription lives for the lifetime of the process.
func NewStreamer(
	gw core.SignalingGateway,
	newTransport core.TransportFactory,
	newSource core.SourceFactory,
	policy FinishPolicy,
) *Streamer {
	if policy == nil {
		policy = StayPolicy{}
	}
	s := &Streamer{
		gw:           gw,
		newTransport: newTransport,
		newSource:    newSource,
		joiner:       joiner{gw: gw},
		dir:          NewDirectory(),
		policy:       policy,
	}
	gw.OnCallUpdate(s.handleCallUpdate)
	return s
}

// OnStreamFinish registers a callback fired when a chat's readable is
// exhausted. Called from the source's goroutine.
func (s *Streamer) OnStreamFinish(fn func(domain.ChatID)) { s.onStreamFinish = fn }

// OnStreamError registers a callback for media read failures.
func (s *Streamer) OnStreamError(fn func(domain.ChatID, error)) { s.onStreamError = fn }

// Stream joins the chat's ongoing call (first call for this chat) and
// streams the readable into it. A second Stream for the same chat only
// swaps the readable; the handshake is not repeated.
func (s *Streamer) Stream(ctx context.Context, chat domain.ChatID, r io.Reader, opts domain.StreamOptions) error {
	for {
		sess, created := s.dir.GetOrCreate(chat)
		sess.mu.Lock()
		if sess.removed {
			// Lost a race with a teardown; the directory entry is gone.
			sess.mu.Unlock()
			continue
		}

		if sess.source != nil {
			sess.source.SetReadable(r)
			sess.mu.Unlock()
			log.Info().Str("module", "app.streamer").Int64("chat", int64(chat)).Msg("rebound readable")
			return nil
		}

		err := s.joinLocked(ctx, sess, r, opts)
		sess.mu.Unlock()
		if err != nil && created {
			log.Warn().Err(err).Str("module", "app.streamer").Int64("chat", int64(chat)).Msg("stream failed")
		}
		return err
	}
}

// joinLocked performs the full join flow. Caller holds sess.mu. On any
// failure the session is torn down and removed so the directory never
// holds a half-initialized entry.
func (s *Streamer) joinLocked(ctx context.Context, sess *Session, r io.Reader, opts domain.StreamOptions) error {
	sess.state = domain.StateJoining

	transport, err := s.newTransport()
	if err != nil {
		s.discardLocked(sess)
		return fmt.Errorf("create transport: %w", err)
	}
	sess.transport = transport

	call, err := s.joiner.join(ctx, sess.chat, transport, opts.Join)
	if err != nil {
		transport.Close()
		s.discardLocked(sess)
		return err
	}
	sess.call = &call

	source, err := s.newSource()
	if err != nil {
		s.leaveQuietly(ctx, call)
		transport.Close()
		s.discardLocked(sess)
		return fmt.Errorf("create source: %w", err)
	}
	source.SetReadable(r)

	track, err := source.CreateTrack()
	if err != nil {
		source.Stop()
		s.leaveQuietly(ctx, call)
		transport.Close()
		s.discardLocked(sess)
		return fmt.Errorf("create track: %w", err)
	}

	chat := sess.chat
	source.OnFinish(func() { s.handleSourceFinish(chat) })
	source.OnError(func(err error) { s.handleSourceError(chat, err) })
	transport.OnClosed(func() { s.handleTransportClosed(chat) })

	if err := transport.Start(ctx, track); err != nil {
		source.Stop()
		s.leaveQuietly(ctx, call)
		transport.Close()
		s.discardLocked(sess)
		return fmt.Errorf("start transport: %w", err)
	}

	sess.source = source
	sess.track = track
	sess.state = domain.StateActive
	log.Info().
		Str("module", "app.streamer").
		Int64("chat", int64(chat)).
		Int64("call", call.ID).
		Msg("streaming")
	return nil
}

// discardLocked removes a session that never became active. Caller
// holds sess.mu.
func (s *Streamer) discardLocked(sess *Session) {
	sess.call = nil
	sess.transport = nil
	sess.source = nil
	sess.track = nil
	sess.state = domain.StateIdle
	sess.removed = true
	s.dir.Remove(sess.chat)
}

// leaveQuietly is a best-effort leave while unwinding a failed join.
func (s *Streamer) leaveQuietly(ctx context.Context, call domain.CallHandle) {
	if err := s.joiner.leave(ctx, call); err != nil {
		log.Warn().Err(err).Str("module", "app.streamer").Int64("call", call.ID).Msg("leave after failed join")
	}
}

// Stop stops the media, leaves the call and drops the session.
// Stopping a chat with no session reports false, not an error.
func (s *Streamer) Stop(ctx context.Context, chat domain.ChatID) (bool, error) {
	sess, ok := s.dir.Get(chat)
	if !ok {
		return false, nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.removed {
		return false, nil
	}
	return true, s.teardownLocked(ctx, sess, false)
}

// teardownLocked is the single closing transition. With swallowLeave a
// failed leave RPC is logged and dropped: the remote call may already
// be gone. Caller holds sess.mu.
func (s *Streamer) teardownLocked(ctx context.Context, sess *Session, swallowLeave bool) error {
	sess.state = domain.StateClosing
	if sess.source != nil {
		sess.source.Stop()
	}
	if sess.transport != nil {
		sess.transport.Close()
	}

	var err error
	if sess.call != nil {
		err = s.joiner.leave(ctx, *sess.call)
		if err != nil && swallowLeave {
			log.Warn().Err(err).
				Str("module", "app.streamer").
				Int64("chat", int64(sess.chat)).
				Msg("best-effort leave failed")
			err = nil
		}
	}

	sess.call = nil
	sess.transport = nil
	sess.source = nil
	sess.track = nil
	sess.removed = true
	s.dir.Remove(sess.chat)
	log.Info().Str("module", "app.streamer").Int64("chat", int64(sess.chat)).Msg("session closed")
	return err
}

// handleCallUpdate routes server-pushed call state changes. It must not
// block the push delivery path.
func (s *Streamer) handleCallUpdate(u core.CallUpdate) {
	if u.Phase != domain.CallDiscarded {
		return
	}
	sess, ok := s.dir.Get(u.Chat)
	if !ok {
		log.Debug().Str("module", "app.streamer").Int64("chat", int64(u.Chat)).Msg("discard for untracked chat")
		return
	}
	go s.forceTeardown(sess)
}

func (s *Streamer) forceTeardown(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), closeLeaveTimeout)
	defer cancel()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.removed || sess.state == domain.StateClosing {
		return
	}
	log.Info().Str("module", "app.streamer").Int64("chat", int64(sess.chat)).Msg("call discarded by server")
	_ = s.teardownLocked(ctx, sess, true)
}

// handleTransportClosed reacts to a dead peer connection. Fired from
// the transport's callback goroutine, so the teardown runs detached.
func (s *Streamer) handleTransportClosed(chat domain.ChatID) {
	sess, ok := s.dir.Get(chat)
	if !ok {
		return
	}
	log.Warn().Str("module", "app.streamer").Int64("chat", int64(chat)).Msg("transport closed")
	go s.forceTeardown(sess)
}

func (s *Streamer) handleSourceFinish(chat domain.ChatID) {
	log.Info().Str("module", "app.streamer").Int64("chat", int64(chat)).Msg("stream finished")
	if s.onStreamFinish != nil {
		s.onStreamFinish(chat)
	}
	if s.policy.OnFinish(chat) != LeaveCall {
		return
	}
	sess, ok := s.dir.Get(chat)
	if !ok {
		return
	}
	go s.forceTeardown(sess)
}

func (s *Streamer) handleSourceError(chat domain.ChatID, err error) {
	log.Error().Err(err).Str("module", "app.streamer").Int64("chat", int64(chat)).Msg("stream error")
	if s.onStreamError != nil {
		s.onStreamError(chat, err)
	}
}

// Pause suspends playback for the chat.
func (s *Streamer) Pause(chat domain.ChatID) domain.ControlResult {
	return s.control(chat, (*Session).Pause)
}

// Resume unsuspends playback for the chat.
func (s *Streamer) Resume(chat domain.ChatID) domain.ControlResult {
	return s.control(chat, (*Session).Resume)
}

// Mute silences the outgoing track for the chat.
func (s *Streamer) Mute(chat domain.ChatID) domain.ControlResult {
	return s.control(chat, (*Session).Mute)
}

// Unmute reverses Mute for the chat.
func (s *Streamer) Unmute(chat domain.ChatID) domain.ControlResult {
	return s.control(chat, (*Session).Unmute)
}

func (s *Streamer) control(chat domain.ChatID, op func(*Session) domain.ControlResult) domain.ControlResult {
	sess, ok := s.dir.Get(chat)
	if !ok {
		return domain.ControlAbsent
	}
	return op(sess)
}

// State reports the chat's session state; ok is false when the chat is
// untracked.
func (s *Streamer) State(chat domain.ChatID) (domain.SessionState, bool) {
	sess, ok := s.dir.Get(chat)
	if !ok {
		return domain.StateIdle, false
	}
	return sess.State(), true
}

// Connected reports whether the chat's session is active.
func (s *Streamer) Connected(chat domain.ChatID) bool {
	sess, ok := s.dir.Get(chat)
	return ok && sess.Connected()
}

// Finished reports whether the chat's readable has been fully consumed;
// ok is false when the chat has no media binding.
func (s *Streamer) Finished(chat domain.ChatID) (finished, ok bool) {
	sess, found := s.dir.Get(chat)
	if !found {
		return false, false
	}
	return sess.Finished()
}

// Edit forwards a participant mutation scoped to the chat's call.
// Editing a chat with no session reports false, not an error.
func (s *Streamer) Edit(ctx context.Context, chat domain.ChatID, participant domain.InputPeer, req domain.EditRequest) (bool, error) {
	sess, ok := s.dir.Get(chat)
	if !ok {
		return false, nil
	}
	call, ok := sess.CallHandle()
	if !ok {
		return false, nil
	}
	if err := s.gw.EditParticipant(ctx, call, participant, req); err != nil {
		return true, fmt.Errorf("edit participant: %w", err)
	}
	return true, nil
}

// EditSelf edits the caller's own participant.
func (s *Streamer) EditSelf(ctx context.Context, chat domain.ChatID, req domain.EditRequest) (bool, error) {
	return s.Edit(ctx, chat, domain.Self(), req)
}

// SetVolume adjusts a participant's volume in the chat's call.
func (s *Streamer) SetVolume(ctx context.Context, chat domain.ChatID, participant domain.InputPeer, volume int) (bool, error) {
	return s.Edit(ctx, chat, participant, domain.EditRequest{Volume: &volume})
}

// Close leaves every tracked call. Leave failures are logged, not
// returned; shutdown must not hang on a dead gateway.
func (s *Streamer) Close() {
	for _, chat := range s.dir.Chats() {
		sess, ok := s.dir.Get(chat)
		if !ok {
			continue
		}
		s.forceTeardown(sess)
	}
}
