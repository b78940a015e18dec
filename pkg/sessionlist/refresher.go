package sessionlist

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/lifecycle"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultLimit        = 50
)

// Lister is the slice of the conversation client the refresher needs.
type Lister interface {
	GetChatSessions(ctx context.Context, limit int) (*chat.SessionList, error)
}

// Snapshot is the result of the most recent refresh.
type Snapshot struct {
	Sessions  []chat.SessionSummary
	Err       error
	RefreshAt time.Time
}

type Config struct {
	Client    Lister
	Scheduler Scheduler
	Limit     int
	// OnUpdate is called after every refresh, from the refresher goroutine.
	OnUpdate func(Snapshot)
}

// Refresher keeps a recent copy of the user's session list. It refreshes
// on scheduler ticks and whenever Trigger is called, e.g. after a new
// session has been created. It never touches the conversation itself.
type Refresher struct {
	client   Lister
	sched    Scheduler
	limit    int
	onUpdate func(Snapshot)
	log      zerolog.Logger

	trigger chan struct{}

	mu      sync.Mutex
	last    Snapshot
	running bool
}

var _ lifecycle.SessionObserver = &Refresher{}

func NewRefresher(cfg Config) (*Refresher, error) {
	if cfg.Client == nil {
		return nil, errors.New("session list: client is required")
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewTickerScheduler(DefaultPollInterval)
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Refresher{
		client:   cfg.Client,
		sched:    cfg.Scheduler,
		limit:    cfg.Limit,
		onUpdate: cfg.OnUpdate,
		log:      log.With().Str("component", "sessionlist").Logger(),
		trigger:  make(chan struct{}, 1),
	}, nil
}

// Run refreshes once, then on every tick or trigger until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	if r == nil {
		return errors.New("session list: nil refresher")
	}
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("session list: refresher already running")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.sched.Stop()
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	_ = r.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.sched.C():
			_ = r.Refresh(ctx)
		case <-r.trigger:
			_ = r.Refresh(ctx)
		}
	}
}

// Trigger asks the running loop for an extra refresh. Multiple triggers
// before the loop wakes up collapse into one.
func (r *Refresher) Trigger() {
	if r == nil {
		return
	}
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

func (r *Refresher) SessionCreated(_ context.Context, sessionID string) {
	r.log.Debug().Str("session_id", sessionID).Msg("session created, refreshing list")
	r.Trigger()
}

// Refresh fetches the list synchronously. A failed refresh keeps the
// previous sessions and records the error.
func (r *Refresher) Refresh(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	list, err := r.client.GetChatSessions(ctx, r.limit)

	r.mu.Lock()
	r.last.RefreshAt = time.Now()
	if err != nil {
		r.last.Err = err
		r.log.Warn().Err(err).Msg("failed to refresh session list")
	} else {
		r.last.Err = nil
		r.last.Sessions = nil
		if list != nil {
			r.last.Sessions = append([]chat.SessionSummary(nil), list.Sessions...)
		}
		r.log.Debug().Int("session_count", len(r.last.Sessions)).Msg("refreshed session list")
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if r.onUpdate != nil {
		r.onUpdate(snap)
	}
	return err
}

func (r *Refresher) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Refresher) snapshotLocked() Snapshot {
	s := r.last
	s.Sessions = append([]chat.SessionSummary(nil), r.last.Sessions...)
	return s
}

func (r *Refresher) Sessions() []chat.SessionSummary { return r.Snapshot().Sessions }

func (r *Refresher) LastError() error { return r.Snapshot().Err }
