package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowchart", "session.yaml")

	t.Run("missing file is an empty session", func(t *testing.T) {
		f := NewFile(path)
		s, err := f.Load()
		require.NoError(t, err)
		assert.Empty(t, s.Token)
		assert.Empty(t, f.Token())
	})

	t.Run("save then load", func(t *testing.T) {
		issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, NewFile(path).Save(&Session{
			Email:    "ada@example.com",
			Token:    "tok-123",
			StoreURL: "http://localhost:5001",
			IssuedAt: issued,
		}))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		f := NewFile(path)
		s, err := f.Load()
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", s.Email)
		assert.True(t, issued.Equal(s.IssuedAt))
		assert.Equal(t, "tok-123", f.Token())
	})

	t.Run("clear removes the token", func(t *testing.T) {
		f := NewFile(path)
		require.NoError(t, f.Clear())
		assert.Empty(t, f.Token())

		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))

		assert.NoError(t, f.Clear(), "clearing twice is fine")
	})

	t.Run("garbage file is an error", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "session.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("token: [unclosed"), 0600))

		f := NewFile(bad)
		_, err := f.Load()
		assert.Error(t, err)
		assert.Empty(t, f.Token())
	})

	t.Run("loaded session is a copy", func(t *testing.T) {
		f := NewFile(filepath.Join(t.TempDir(), "s.yaml"))
		require.NoError(t, f.Save(&Session{Token: "a"}))

		s, _ := f.Load()
		s.Token = "mutated"
		assert.Equal(t, "a", f.Token())
	})
}
