package sessionstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FileStore keeps the slot in a small YAML state file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

type fileState struct {
	CurrentSessionID string    `yaml:"current_session_id"`
	UpdatedAt        time.Time `yaml:"updated_at"`
}

var _ Store = &FileStore{}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("file session store: empty path")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Load(_ context.Context) (string, bool, error) {
	if s == nil {
		return "", false, errors.New("file session store: nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "file session store: read")
	}
	var st fileState
	if err := yaml.Unmarshal(b, &st); err != nil {
		return "", false, errors.Wrap(err, "file session store: decode")
	}
	id := strings.TrimSpace(st.CurrentSessionID)
	return id, id != "", nil
}

func (s *FileStore) Save(_ context.Context, sessionID string) error {
	if s == nil {
		return errors.New("file session store: nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		err := os.Remove(s.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrap(err, "file session store: remove")
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "file session store: mkdir")
	}
	b, err := yaml.Marshal(fileState{CurrentSessionID: sessionID, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "file session store: encode")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errors.Wrap(err, "file session store: write")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "file session store: rename")
}
