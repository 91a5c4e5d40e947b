package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"seaprocure/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	key := "payment-proof/QUO-2026-0001/receipt.pdf"
	require.NoError(t, s.Put(ctx, key, strings.NewReader("%PDF-1.4"), "application/pdf"))

	rc, err := s.Open(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, key), "deleting twice is fine")
}

func TestDiskStoreRejectsTraversal(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, s.Put(context.Background(), "../escape.txt", strings.NewReader("x"), ""))
	assert.Error(t, s.Put(context.Background(), "", strings.NewReader("x"), ""))
}

func TestNewSelectsDriver(t *testing.T) {
	s, err := New(context.Background(), config.StorageConfig{Driver: "disk", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &DiskStore{}, s)

	_, err = New(context.Background(), config.StorageConfig{Driver: "s3"})
	assert.ErrorContains(t, err, "bucket")

	_, err = New(context.Background(), config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}
