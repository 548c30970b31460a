// Package userstore maps nicknames to API keys, persisted as a flat JSON
// record list.
package userstore

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ErrNicknameTaken reports a registration collision.
var ErrNicknameTaken = errors.New("nickname already exists")

// User is one credential record.
type User struct {
	Nickname string `json:"nickname"`
	APIKey   string `json:"api_key"`
}

// Store holds the in-memory index and rewrites the whole record list on
// every mutation. A missing or unparseable file starts the store empty.
type Store struct {
	path  string
	mu    sync.RWMutex
	users []User
}

func Open(path string) *Store {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, &s.users); err != nil {
		s.users = nil
	}
	return s
}

// Register creates a credential record and returns the new API key.
// Nickname matching is case-sensitive; concurrent registrations with the
// same nickname are serialized so exactly one wins.
func (s *Store) Register(nickname string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Nickname == nickname {
			return "", ErrNicknameTaken
		}
	}

	id := uuid.New()
	key := hex.EncodeToString(id[:])
	users := append(append([]User{}, s.users...), User{Nickname: nickname, APIKey: key})
	if err := s.write(users); err != nil {
		return "", err
	}
	s.users = users
	return key, nil
}

// Resolve returns the user owning apiKey, if any.
func (s *Store) Resolve(apiKey string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.APIKey == apiKey {
			return u, true
		}
	}
	return User{}, false
}

// write replaces the record list on disk via temp file + rename, so a crash
// mid-write cannot corrupt the existing list.
func (s *Store) write(users []User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directories: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
