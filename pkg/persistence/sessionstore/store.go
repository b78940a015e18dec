package sessionstore

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Store is the durable single-slot binding of the current session id.
//
// An absent key means there is no active session. Saving an empty id
// removes the key.
type Store interface {
	Load(ctx context.Context) (sessionID string, ok bool, err error)
	Save(ctx context.Context, sessionID string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// DefaultKey is the slot name used by the keyed backends.
const DefaultKey = "helpdesk-chat:current-session-id"

// Settings selects and configures a backend.
type Settings struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	RedisKey  string `yaml:"redis_key"`
}

// Open builds the store described by settings.
func Open(s Settings) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case "", BackendMemory:
		return NewInMemoryStore(), nil
	case BackendFile:
		return NewFileStore(s.Path)
	case BackendSQLite:
		dsn, err := SQLiteDSNForFile(s.Path)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(dsn, DefaultKey)
	case BackendRedis:
		return NewRedisStore(s.RedisAddr, s.RedisKey)
	default:
		return nil, errors.Errorf("session store: unknown backend %q", s.Backend)
	}
}
