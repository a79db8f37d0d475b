package app

import "github.com/avoran/gramstream/internal/domain"

type FinishAction int

const (
	StayInCall FinishAction = iota
	LeaveCall
)

// FinishPolicy decides what happens to a session when its readable is
// exhausted.
type FinishPolicy interface {
	OnFinish(chat domain.ChatID) FinishAction
}

// StayPolicy keeps the session in the call with a silent track; a later
// Stream call can rebind a new readable.
type StayPolicy struct{}

func (StayPolicy) OnFinish(domain.ChatID) FinishAction { return StayInCall }

// LeavePolicy tears the session down as soon as playback finishes.
type LeavePolicy struct{}

func (LeavePolicy) OnFinish(domain.ChatID) FinishAction { return LeaveCall }
