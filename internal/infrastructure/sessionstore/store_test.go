package sessionstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, master byte) *Store {
	t.Helper()
	s, err := NewFromMaster(filepath.Join(t.TempDir(), "nested", "session"), bytes.Repeat([]byte{master}, 32))
	require.NoError(t, err)
	return s
}

func TestSaveLoad(t *testing.T) {
	s := newStore(t, 1)
	state := []byte(`{"cookies":[{"name":"sid","value":"abc"}],"origins":[]}`)

	require.NoError(t, s.Save(state))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "abc")

	got, savedAt, err := s.Load()
	require.NoError(t, err)
	assert.JSONEq(t, string(state), string(got))
	assert.False(t, savedAt.IsZero())
}

func TestLoad_Missing(t *testing.T) {
	s := newStore(t, 1)
	_, _, err := s.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLoad_WrongKey(t *testing.T) {
	s := newStore(t, 1)
	require.NoError(t, s.Save([]byte(`{}`)))

	other, err := NewFromMaster(s.Path(), bytes.Repeat([]byte{2}, 32))
	require.NoError(t, err)
	_, _, err = other.Load()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}

func TestSave_RejectsInvalidJSON(t *testing.T) {
	s := newStore(t, 1)
	assert.Error(t, s.Save([]byte("not json")))
}

func TestClear(t *testing.T) {
	s := newStore(t, 1)
	require.NoError(t, s.Save([]byte(`{}`)))
	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())

	_, _, err := s.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}
