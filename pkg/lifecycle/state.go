package lifecycle

import (
	"context"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
)

// Phase is the binding state of a Manager.
type Phase int

const (
	// PhaseIdle means no session is bound yet; the next successful send
	// creates one.
	PhaseIdle Phase = iota
	// PhaseActive means the manager is bound to a remote session id.
	PhaseActive
)

func (p Phase) String() string {
	if p == PhaseActive {
		return "active"
	}
	return "idle"
}

// State is a point-in-time copy of the manager's observable state.
type State struct {
	CurrentSessionID string
	Messages         []chat.Message
	Loading          bool
	Error            string
	Title            string
	// LoadFailed is set when Hydrate could not restore the stored session.
	LoadFailed bool
}

func (s State) Phase() Phase {
	if s.CurrentSessionID != "" {
		return PhaseActive
	}
	return PhaseIdle
}

// SessionObserver is notified when a send binds a brand-new session.
type SessionObserver interface {
	SessionCreated(ctx context.Context, sessionID string)
}

type SessionObserverFunc func(ctx context.Context, sessionID string)

func (f SessionObserverFunc) SessionCreated(ctx context.Context, sessionID string) {
	f(ctx, sessionID)
}

// SendResult describes what a SendMessage call appended.
type SendResult struct {
	UserMessage chat.Message
	// Reply is the assistant answer, or a synthetic error message when the
	// remote call failed.
	Reply chat.Message
	// SessionCreated is true when this send moved the manager from idle to
	// active. SessionID is then the new id.
	SessionCreated bool
	SessionID      string
}

func (r *SendResult) Failed() bool {
	return r != nil && r.Reply.Status == chat.StatusError
}
