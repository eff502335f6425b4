package processing_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/processing"
)

func TestSigner(t *testing.T) {
	t.Parallel()

	s, err := processing.NewSigner("whsec_test", 5*time.Minute)
	require.NoError(t, err)

	payload := []byte(`{"outcome":"failed"}`)
	now := time.Now()
	ts := strconv.FormatInt(now.Unix(), 10)
	sig := s.Sign(payload, now)

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, s.Verify(payload, sig, ts))
	})

	t.Run("tampered payload", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, s.Verify([]byte(`{"outcome":"succeeded"}`), sig, ts), processing.ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		other, err := processing.NewSigner("other", 5*time.Minute)
		require.NoError(t, err)
		assert.ErrorIs(t, other.Verify(payload, sig, ts), processing.ErrInvalidSignature)
	})

	t.Run("too old", func(t *testing.T) {
		t.Parallel()
		old := now.Add(-10 * time.Minute)
		err := s.Verify(payload, s.Sign(payload, old), strconv.FormatInt(old.Unix(), 10))
		assert.ErrorIs(t, err, processing.ErrInvalidSignature)
	})

	t.Run("far future", func(t *testing.T) {
		t.Parallel()
		future := now.Add(10 * time.Minute)
		err := s.Verify(payload, s.Sign(payload, future), strconv.FormatInt(future.Unix(), 10))
		assert.ErrorIs(t, err, processing.ErrInvalidSignature)
	})

	t.Run("missing headers", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, s.Verify(payload, "", ts), processing.ErrInvalidSignature)
		assert.ErrorIs(t, s.Verify(payload, sig, "yesterday"), processing.ErrInvalidSignature)
	})
}

func TestNewSigner_RequiresSecret(t *testing.T) {
	t.Parallel()
	_, err := processing.NewSigner("", time.Minute)
	assert.ErrorIs(t, err, processing.ErrInvalidConfig)
}

func TestDecodeCompletion(t *testing.T) {
	t.Parallel()

	tid, rid := uuid.New(), uuid.New()
	ids := `"tenant_id":"` + tid.String() + `","resource_id":"` + rid.String() + `"`

	c, err := processing.DecodeCompletion([]byte(`{` + ids + `,"outcome":"succeeded","storage_pointer":"s3://m/k","assets_complete":true}`))
	require.NoError(t, err)
	assert.Equal(t, tid, c.TenantID)
	assert.Equal(t, rid, c.ResourceID)
	assert.Equal(t, "s3://m/k", c.StoragePointer)
	assert.True(t, c.AssetsComplete)

	bad := []string{
		`not json`,
		`{"outcome":"failed"}`,
		`{` + ids + `,"outcome":"succeeded"}`,
		`{` + ids + `,"outcome":"exploded"}`,
	}
	for _, b := range bad {
		_, err := processing.DecodeCompletion([]byte(b))
		assert.ErrorIs(t, err, processing.ErrInvalidPayload, b)
	}
}
