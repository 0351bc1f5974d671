package dispatch

import (
	"github.com/xenking/ticket-dispatch/internal/ticket"
)

// State is the dispatcher phase. Idle is the only state accepting a new
// request.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateSending
	StateFallbackPending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateSending:
		return "sending"
	case StateFallbackPending:
		return "fallback_pending"
	default:
		return "unknown"
	}
}

// Status is the terminal result of one dispatch.
type Status uint8

const (
	// StatusSent means the printer accepted every byte.
	StatusSent Status = iota + 1
	// StatusSentViaFallback means the ticket was handed to the fallback
	// surface instead.
	StatusSentViaFallback
	// StatusEmpty means the kind had nothing to print. Nothing was sent.
	StatusEmpty
	// StatusFailed means neither the printer nor the fallback surface could
	// be used.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusSentViaFallback:
		return "sent_via_fallback"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is reported once per dispatch.
type Outcome struct {
	Status Status
	Kind   ticket.Kind
	// JobID identifies the attempt in logs and fallback artifacts. Empty for
	// StatusEmpty.
	JobID    string
	OrderRef string
	// Device is the printer that received the ticket when Status is
	// StatusSent.
	Device string
	// Reason is a user-legible explanation for fallback and failure.
	Reason string
	// Err is the cause behind Reason, if any.
	Err error
}
