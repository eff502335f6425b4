package upload_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/upload"
)

type failingReader struct{ after int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.after == 0 {
		return 0, errors.New("client went away")
	}
	n := min(len(p), r.after)
	r.after -= n
	return n, nil
}

func TestLocalTempStorage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := upload.NewLocalTempStorage(t.TempDir())
	require.NoError(t, err)

	const key = "tenant-a/session.part"
	require.NoError(t, s.Create(ctx, key))
	assert.Error(t, s.Create(ctx, key), "create does not truncate an existing upload")

	n, err := s.Append(ctx, key, 0, bytes.NewReader([]byte("hello ")), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	_, err = s.Append(ctx, key, 3, bytes.NewReader([]byte("x")), 100)
	assert.ErrorIs(t, err, upload.ErrTempStorage, "offset must match file size")

	_, err = s.Append(ctx, key, 6, &failingReader{after: 3}, 100)
	assert.Error(t, err)

	_, err = s.Append(ctx, key, 6, bytes.NewReader([]byte("world!")), 5)
	assert.ErrorIs(t, err, upload.ErrChunkTooLarge)

	n, err = s.Append(ctx, key, 6, bytes.NewReader([]byte("world")), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	rc, err := s.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello world", string(data))

	require.NoError(t, s.Truncate(ctx, key, 5))
	require.NoError(t, s.Remove(ctx, key))
	require.NoError(t, s.Remove(ctx, key), "removing twice is fine")
}

func TestLocalTempStorage_ConfinesPaths(t *testing.T) {
	t.Parallel()

	s, err := upload.NewLocalTempStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../escape.part", "a/../../escape.part", "."} {
		assert.ErrorIs(t, s.Create(context.Background(), key), upload.ErrInvalidKey, key)
	}
}
