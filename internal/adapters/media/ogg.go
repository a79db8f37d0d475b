// Package media adapts byte readables into media sources that feed
// webrtc tracks.
package media

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog/log"

	"github.com/avoran/gramstream/internal/core"
)

// Ogg pages produced by the usual encoders carry 20ms of opus audio.
const pageDuration = 20 * time.Millisecond

// A single opus frame of silence, sent while muted and after the
// readable is exhausted so the RTP stream keeps flowing.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// OggSource paces pages of an Ogg/Opus readable onto a sample track.
type OggSource struct {
	sampleRate uint32
	channels   uint16

	mu       sync.Mutex
	reader   io.Reader
	ogg      *oggreader.OggReader
	paused   bool
	muted    bool
	finished bool
	onFinish func()
	onError  func(error)

	track *webrtc.TrackLocalStaticSample

	stop     chan struct{}
	stopOnce sync.Once
}

var _ core.MediaSource = (*OggSource)(nil)

func NewOggSource(sampleRate uint32, channels uint16) *OggSource {
	return &OggSource{
		sampleRate: sampleRate,
		channels:   channels,
		stop:       make(chan struct{}),
	}
}

// SetReadable swaps the underlying readable. The previous one is closed
// when it owns resources; the ogg parser restarts on the next page.
func (s *OggSource) SetReadable(r io.Reader) {
	s.mu.Lock()
	old := s.reader
	s.reader = r
	s.ogg = nil
	s.finished = false
	s.mu.Unlock()
	closeReader(old)
}

// CreateTrack builds the opus sample track and starts the pacing loop.
func (s *OggSource) CreateTrack() (webrtc.TrackLocal, error) {
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: s.sampleRate,
		Channels:  s.channels,
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

func (s *OggSource) loop() {
	ticker := time.NewTicker(pageDuration)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *OggSource) tick() {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	track := s.track

	if s.muted || s.finished || s.reader == nil {
		s.mu.Unlock()
		s.write(track, opusSilence)
		return
	}

	if s.ogg == nil {
		ogg, _, err := oggreader.NewWith(s.reader)
		if err != nil {
			s.failLocked(err)
			return
		}
		s.ogg = ogg
	}

	page, _, err := s.ogg.ParseNextPage()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.finishLocked()
		} else {
			s.failLocked(err)
		}
		return
	}
	s.mu.Unlock()
	s.write(track, page)
}

func (s *OggSource) write(track *webrtc.TrackLocalStaticSample, data []byte) {
	if err := track.WriteSample(media.Sample{Data: data, Duration: pageDuration}); err != nil {
		log.Debug().Err(err).Str("module", "media").Msg("write sample")
	}
}

// finishLocked marks the current readable exhausted and fires the
// finish callback exactly once per readable. Unlocks.
func (s *OggSource) finishLocked() {
	s.finished = true
	reader := s.reader
	fn := s.onFinish
	s.mu.Unlock()
	closeReader(reader)
	log.Info().Str("module", "media").Msg("readable exhausted")
	if fn != nil {
		fn()
	}
}

// failLocked parks the source on a read error. Unlocks.
func (s *OggSource) failLocked(err error) {
	s.finished = true
	reader := s.reader
	fn := s.onError
	s.mu.Unlock()
	closeReader(reader)
	log.Error().Err(err).Str("module", "media").Msg("read error")
	if fn != nil {
		fn(err)
	}
}

func (s *OggSource) SetPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()
}

func (s *OggSource) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *OggSource) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *OggSource) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *OggSource) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

func (s *OggSource) OnFinish(fn func()) {
	s.mu.Lock()
	s.onFinish = fn
	s.mu.Unlock()
}

func (s *OggSource) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
}

// Stop halts the pacing loop. Safe to call from source callbacks; it
// never waits for the loop goroutine.
func (s *OggSource) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		reader := s.reader
		s.reader = nil
		s.ogg = nil
		s.mu.Unlock()
		closeReader(reader)
	})
}

func closeReader(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}
