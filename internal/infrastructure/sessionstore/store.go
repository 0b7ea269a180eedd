package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/example/tock-booker/internal/infrastructure/crypto"
)

const (
	sessionName = "tockbook_session"
	maxAge      = 14 * 24 * time.Hour
)

var ErrNoSession = errors.New("no saved session")

// Store keeps the browser storage state (login cookies) between runs in a
// single file, signed and encrypted with securecookie.
type Store struct {
	path string
	sc   *securecookie.SecureCookie
	now  func() time.Time
}

type envelope struct {
	SavedAt time.Time       `json:"saved_at"`
	State   json.RawMessage `json:"state"`
}

func New(path string, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxLength(0)
	sc.MaxAge(int(maxAge / time.Second))
	return &Store{path: path, sc: sc, now: time.Now}
}

// NewFromMaster derives the signing and encryption keys from the master key.
func NewFromMaster(path string, master []byte) (*Store, error) {
	hashKey, err := crypto.DeriveKey(master, "session-hash", 64)
	if err != nil {
		return nil, fmt.Errorf("derive session hash key: %w", err)
	}
	blockKey, err := crypto.DeriveKey(master, "session-block", 32)
	if err != nil {
		return nil, fmt.Errorf("derive session block key: %w", err)
	}
	return New(path, hashKey, blockKey), nil
}

func (s *Store) Path() string { return s.path }

// Save replaces the stored state. state must be valid JSON.
func (s *Store) Save(state []byte) error {
	if !json.Valid(state) {
		return errors.New("session state is not valid JSON")
	}
	encoded, err := s.sc.Encode(sessionName, envelope{SavedAt: s.now().UTC(), State: state})
	if err != nil {
		return fmt.Errorf("seal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(encoded), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load returns the stored state, or ErrNoSession when there is none. A file
// that fails verification or has expired is reported as an error; callers
// usually Clear and continue with a fresh login.
func (s *Store) Load() ([]byte, time.Time, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, time.Time{}, ErrNoSession
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	var env envelope
	if err := s.sc.Decode(sessionName, string(raw), &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("open session: %w", err)
	}
	return env.State, env.SavedAt, nil
}

func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
