package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestImageStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewImageStore(dir)
	require.NoError(t, err)

	path, err := store.Save(bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, PublicPrefix))
	assert.True(t, strings.HasSuffix(path, ".png"))

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(path, PublicPrefix)))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestImageStore_RejectsNonImages(t *testing.T) {
	store, err := NewImageStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(strings.NewReader("#!/bin/sh\necho hi\n"))
	assert.ErrorIs(t, err, ErrNotAnImage)
}

func TestImageStore_RejectsLargeFiles(t *testing.T) {
	store, err := NewImageStore(t.TempDir())
	require.NoError(t, err)

	big := append(append([]byte{}, pngHeader...), make([]byte, MaxImageSize)...)
	_, err = store.Save(bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestImageStore_Remove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewImageStore(dir)
	require.NoError(t, err)

	path, err := store.Save(bytes.NewReader(pngHeader))
	require.NoError(t, err)
	require.NoError(t, store.Remove(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.NoError(t, store.Remove(path), "already removed")
	assert.Error(t, store.Remove("/uploads/../secrets.txt"))
	assert.Error(t, store.Remove("/etc/passwd"))
}

func TestImageStore_RejectedUploadsLeaveNoFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewImageStore(dir)
	require.NoError(t, err)

	_, err = store.Save(strings.NewReader("plain text"))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
