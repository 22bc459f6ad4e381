package store

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"nsyte/internal/domain"
)

const (
	sessionFilename = "bunker_session.json"
	pendingFilename = "bunker_pending.json"
)

// FileStore keeps both records as files under dir.
type FileStore struct {
	dir string
	log zerolog.Logger
	mu  sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string, log zerolog.Logger) *FileStore {
	return &FileStore{dir: dir, log: log.With().Str("store", "file").Logger()}
}

func (s *FileStore) SessionPath() string { return filepath.Join(s.dir, sessionFilename) }
func (s *FileStore) PendingPath() string { return filepath.Join(s.dir, pendingFilename) }

func (s *FileStore) LoadSession(context.Context) (domain.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.SessionPath())
	if err != nil {
		return domain.Session{}, false, err
	}
	sess, ok := decodeSession(s.log, s.SessionPath(), b)
	return sess, ok, nil
}

// SaveSession refuses incomplete sessions.
func (s *FileStore) SaveSession(_ context.Context, session domain.Session) error {
	if !session.Complete() {
		return domain.ErrIncompleteSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.SessionPath(), session, 0o600)
}

func (s *FileStore) ClearSession(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeFile(s.SessionPath())
}

func (s *FileStore) LoadHandshake(context.Context) (domain.PendingHandshake, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.PendingPath())
	if err != nil {
		return domain.PendingHandshake{}, false, err
	}
	p, ok := decodeHandshake(s.log, s.PendingPath(), b)
	return p, ok, nil
}

func (s *FileStore) SaveHandshake(_ context.Context, pending domain.PendingHandshake) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.PendingPath(), pending, 0o600)
}

func (s *FileStore) ClearHandshake(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeFile(s.PendingPath())
}

// Compile-time assertions that FileStore implements both store contracts.
var (
	_ domain.SessionStore   = (*FileStore)(nil)
	_ domain.HandshakeStore = (*FileStore)(nil)
)
