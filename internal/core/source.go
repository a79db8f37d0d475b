package core

import (
	"io"

	"github.com/pion/webrtc/v4"
)

// MediaSource turns a byte readable into a local track with playback
// control. Owned by the adapter; the session only consumes its
// lifecycle.
type MediaSource interface {
	// SetReadable swaps the underlying readable. Resets the finished
	// flag; safe to call while the source is running.
	SetReadable(r io.Reader)

	// CreateTrack returns the local track fed by this source. Must be
	// called once, before the transport starts.
	CreateTrack() (webrtc.TrackLocal, error)

	SetPaused(paused bool)
	Paused() bool

	SetMuted(muted bool)
	Muted() bool

	// Finished reports whether the current readable has been fully
	// consumed.
	Finished() bool

	// Stop tears the source down. Idempotent.
	Stop()

	// OnFinish registers a callback fired once per readable when it is
	// exhausted.
	OnFinish(fn func())
	// OnError registers a callback for read failures.
	OnError(fn func(error))
}

// SourceFactory builds a fresh MediaSource for one session.
type SourceFactory func() (MediaSource, error)
