package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"my photo.png", "my_photo.png"},
		{"../../etc/passwd", "passwd"},
		{`..\..\windows\system32`, "system32"},
		{"dir/sub/cat.gif", "cat.gif"},
		{".hidden", "hidden"},
		{"..", ""},
		{"über böse.jpg", "ber_b_se.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SecureName(tt.in), "input %q", tt.in)
	}
}

func TestSaveAndOpen(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	content := []byte("not really a jpeg")
	path, err := store.Save("a.jpg", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, store.Path("a.jpg"), path)

	f, err := store.Open("a.jpg")
	require.NoError(t, err)
	defer f.Close()

	got, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestSaveOverwrites(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("a.png", bytes.NewReader([]byte("first")))
	require.NoError(t, err)
	_, err = store.Save("a.png", bytes.NewReader([]byte("second")))
	require.NoError(t, err)

	got, err := os.ReadFile(store.Path("a.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestListFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	for _, name := range []string{"b.png", "a.jpg", "c.gif", "notes.txt", "evil.exe"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	names, err := store.List([]string{".jpg", ".png", ".gif"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.png", "c.gif"}, names)
}
