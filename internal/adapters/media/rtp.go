package media

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avoran/gramstream/internal/core"
)

const idleWait = 20 * time.Millisecond

// RTPSource passes pre-packetized RTP through to the transport. The
// readable carries RFC 4571 framing: each packet is preceded by a
// two-byte big-endian length. Pause and mute both drop packets; the
// upstream packetizer owns timing.
type RTPSource struct {
	mu       sync.Mutex
	reader   io.Reader
	paused   bool
	muted    bool
	finished bool
	onFinish func()
	onError  func(error)

	track *webrtc.TrackLocalStaticRTP

	stop     chan struct{}
	stopOnce sync.Once
}

var _ core.MediaSource = (*RTPSource)(nil)

func NewRTPSource() *RTPSource {
	return &RTPSource{stop: make(chan struct{})}
}

func (s *RTPSource) SetReadable(r io.Reader) {
	s.mu.Lock()
	old := s.reader
	s.reader = r
	s.finished = false
	s.mu.Unlock()
	closeReader(old)
}

func (s *RTPSource) CreateTrack() (webrtc.TrackLocal, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	}, "audio", "gramstream")
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.track = track
	s.mu.Unlock()
	go s.loop()
	return track, nil
}

func (s *RTPSource) loop() {
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		s.mu.Lock()
		reader := s.reader
		finished := s.finished
		s.mu.Unlock()

		if reader == nil || finished {
			time.Sleep(idleWait)
			continue
		}
		s.forward(reader)
	}
}

// forward reads one framed packet and writes it to the track unless the
// source is paused or muted.
func (s *RTPSource) forward(reader io.Reader) {
	var prefix [2]byte
	if _, err := io.ReadFull(reader, prefix[:]); err != nil {
		s.finishReader(reader, err)
		return
	}
	payload := make([]byte, binary.BigEndian.Uint16(prefix[:]))
	if _, err := io.ReadFull(reader, payload); err != nil {
		s.finishReader(reader, err)
		return
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(payload); err != nil {
		log.Warn().Err(err).Str("module", "media").Msg("bad rtp packet")
		return
	}

	s.mu.Lock()
	drop := s.paused || s.muted || s.reader != reader
	track := s.track
	s.mu.Unlock()
	if drop {
		return
	}
	if err := track.WriteRTP(&pkt); err != nil {
		log.Debug().Err(err).Str("module", "media").Msg("write rtp")
	}
}

func (s *RTPSource) finishReader(reader io.Reader, err error) {
	s.mu.Lock()
	if s.reader != reader {
		// The readable was swapped while this read was in flight.
		s.mu.Unlock()
		return
	}
	s.finished = true
	finishFn := s.onFinish
	errorFn := s.onError
	s.mu.Unlock()
	closeReader(reader)

	if errors.Is(err, io.EOF) {
		log.Info().Str("module", "media").Msg("rtp readable exhausted")
		if finishFn != nil {
			finishFn()
		}
		return
	}
	log.Error().Err(err).Str("module", "media").Msg("rtp read error")
	if errorFn != nil {
		errorFn(err)
	}
}

func (s *RTPSource) SetPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
}

func (s *RTPSource) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *RTPSource) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *RTPSource) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *RTPSource) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

func (s *RTPSource) OnFinish(fn func()) {
	s.mu.Lock()
	s.onFinish = fn
	s.mu.Unlock()
}

func (s *RTPSource) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

func (s *RTPSource) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		reader := s.reader
		s.reader = nil
		s.mu.Unlock()
		closeReader(reader)
	})
}
