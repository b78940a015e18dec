package redisstream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/helpdesk-chat/pkg/lifecycle"
)

// TopicSessions is the topic (redis stream name) carrying session events.
const TopicSessions = "helpdesk-chat.sessions"

type EventType string

const (
	EventSessionCreated EventType = "session.created"
	EventSessionDeleted EventType = "session.deleted"
	EventSessionRenamed EventType = "session.renamed"
)

type SessionEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Title     string    `json:"title,omitempty"`
	At        time.Time `json:"at"`
}

func Publish(pub message.Publisher, ev SessionEvent) error {
	if pub == nil {
		return errors.New("session events: nil publisher")
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "session events: encode")
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("type", string(ev.Type))
	if err := pub.Publish(TopicSessions, msg); err != nil {
		return errors.Wrapf(err, "session events: publish %s", ev.Type)
	}
	return nil
}

// SessionPublisher forwards session-created notifications onto the bus.
type SessionPublisher struct {
	pub message.Publisher
}

var _ lifecycle.SessionObserver = &SessionPublisher{}

func NewSessionPublisher(pub message.Publisher) *SessionPublisher {
	return &SessionPublisher{pub: pub}
}

func (p *SessionPublisher) SessionCreated(_ context.Context, sessionID string) {
	if p == nil || p.pub == nil {
		return
	}
	if err := Publish(p.pub, SessionEvent{Type: EventSessionCreated, SessionID: sessionID}); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to publish session created event")
	}
}

// Consume delivers session events to fn until ctx is done or the
// subscription closes. Malformed payloads are acked and skipped.
func Consume(ctx context.Context, sub message.Subscriber, fn func(SessionEvent)) error {
	if sub == nil {
		return errors.New("session events: nil subscriber")
	}
	msgs, err := sub.Subscribe(ctx, TopicSessions)
	if err != nil {
		return errors.Wrap(err, "session events: subscribe")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev SessionEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				log.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping malformed session event")
				msg.Ack()
				continue
			}
			fn(ev)
			msg.Ack()
		}
	}
}
