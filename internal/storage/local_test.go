package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir, "/uploads/")
	ctx := context.Background()

	url, err := s.Put(ctx, "covers/a.png", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/covers/a.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "covers", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.Delete(ctx, "covers/a.png"))
	_, err = os.Stat(filepath.Join(dir, "covers", "a.png"))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, "covers/a.png"))
}

func TestLocalStore_RejectsEscapingNames(t *testing.T) {
	s := NewLocalStore(t.TempDir(), "/uploads")
	for _, name := range []string{"", ".", "../x.png", "/etc/passwd"} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(context.Background(), name, strings.NewReader("x"), 1, "image/png")
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}
}
