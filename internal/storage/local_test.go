package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywatch-app/skywatch-server/internal/errors"
)

func TestLocal_PutGet(t *testing.T) {
	backend, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	data := []byte("blob bytes")
	locator, err := backend.Put(ctx, "bafyreix", "image/png", data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(locator, "file://"))

	got, err := backend.Get(ctx, "bafyreix")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLocal_Sharding(t *testing.T) {
	base := t.TempDir()
	backend, err := NewLocal(base)
	require.NoError(t, err)

	locator, err := backend.Put(context.Background(), "bafyreix", "image/png", []byte("x"))
	require.NoError(t, err)

	want := filepath.Join(base, "blobs", "ba", "bafyreix")
	assert.Equal(t, "file://"+want, locator)
}

func TestLocal_GetMissing(t *testing.T) {
	backend, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = backend.Get(context.Background(), "bafymissing")
	assert.True(t, errors.Is(err, ErrNotStored))
}

func TestLocal_PutSameCIDTwice(t *testing.T) {
	backend, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first, err := backend.Put(ctx, "bafyreix", "image/png", []byte("bytes"))
	require.NoError(t, err)
	second, err := backend.Put(ctx, "bafyreix", "image/png", []byte("bytes"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLocal_Validation(t *testing.T) {
	_, err := NewLocal("")
	assert.Error(t, err)

	backend, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = backend.Put(ctx, "", "image/png", []byte("x"))
	assert.Error(t, err)

	_, err = backend.Put(ctx, "bafyreix", "image/png", nil)
	assert.Error(t, err)

	_, err = backend.Get(ctx, "")
	assert.Error(t, err)
}
