// Package sessions stores named server sessions as YAML files. A
// session ties a server URL and login to the snapshot database used
// for offline access, so the client can resume where it left off.
package sessions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/log"
)

// Session describes one stored server connection.
type Session struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	URL   string `yaml:"url"`
	Login string `yaml:"login"`
	// SnapshotPath is the SQLite snapshot database for this session.
	SnapshotPath string    `yaml:"snapshot_path"`
	LastSync     time.Time `yaml:"last_sync,omitempty"`
}

// Store reads and writes session files under a directory, one YAML
// file per session named by its id.
type Store struct {
	dir string
}

// NewStore creates a session store rooted at dir, creating it if
// needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating session directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Create stores a new session for the server, assigning it an id and
// a snapshot path. The name must be unused.
func (s *Store) Create(name, url, login string) (*Session, error) {
	if _, err := s.FindByName(name); err == nil {
		return nil, &SessionExistsError{Name: name}
	}
	id := uuid.NewString()
	session := &Session{
		ID:           id,
		Name:         name,
		URL:          url,
		Login:        login,
		SnapshotPath: filepath.Join(s.dir, id+".db"),
	}
	if err := s.Save(session); err != nil {
		return nil, err
	}
	log.Info(log.CatConfig, "session created", "name", name, "id", id)
	return session, nil
}

// Save writes the session file.
func (s *Store) Save(session *Session) error {
	data, err := yaml.Marshal(session)
	if err != nil {
		return fmt.Errorf("encoding session %q: %w", session.Name, err)
	}
	path := s.sessionPath(session.ID)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing session file %s: %w", path, err)
	}
	return nil
}

// Load reads one session by id.
func (s *Store) Load(id string) (*Session, error) {
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &SessionNotFoundError{Name: id}
		}
		return nil, err
	}
	var session Session
	if err := yaml.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &session, nil
}

// List returns all stored sessions.
func (s *Store) List() ([]*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var sessions []*Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		session, err := s.Load(strings.TrimSuffix(entry.Name(), ".yaml"))
		if err != nil {
			log.Warn(log.CatConfig, "skipping unreadable session file", "file", entry.Name(), "error", err)
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// FindByName returns the session with the given name, matched
// case-insensitively.
func (s *Store) FindByName(name string) (*Session, error) {
	sessions, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		if strings.EqualFold(session.Name, name) {
			return session, nil
		}
	}
	return nil, &SessionNotFoundError{Name: name}
}

// Delete removes the session file and its snapshot database.
func (s *Store) Delete(id string) error {
	session, err := s.Load(id)
	if err != nil {
		return err
	}
	if session.SnapshotPath != "" {
		if err := os.Remove(session.SnapshotPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing snapshot %s: %w", session.SnapshotPath, err)
		}
	}
	return os.Remove(s.sessionPath(id))
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}
