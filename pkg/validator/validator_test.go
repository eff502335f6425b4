package validator_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/vidkit/pkg/validator"
)

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("all rules pass", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(
			validator.Required("title", "Launch"),
			validator.MaxLen("title", "Launch", 200),
			validator.Positive("total_size", int64(10)),
			validator.Max("total_size", int64(10), 10),
			validator.RequiredUUID("resource_id", uuid.New()),
			validator.OneOf("status", "ready", "ready", "failed"),
		)
		assert.NoError(t, err)
	})

	t.Run("collects every failure", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(
			validator.Required("title", "  "),
			validator.Positive("total_size", int64(0)),
			validator.Max("total_size", int64(11), 10),
			validator.RequiredUUID("resource_id", uuid.Nil),
			validator.OneOf("status", "gone", "ready", "failed"),
		)
		require.Error(t, err)
		assert.True(t, validator.IsValidationError(err))

		ve := validator.ExtractValidationErrors(err)
		require.Len(t, ve, 5)
		assert.True(t, ve.Has("title"))
		assert.True(t, ve.Has("resource_id"))
		assert.False(t, ve.Has("filename"))
		assert.Equal(t, []string{"must be greater than zero", "must be at most 10"}, ve.Fields()["total_size"])
	})

	t.Run("max length counts runes", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, validator.Apply(validator.MaxLen("title", "ééé", 3)))
		assert.Error(t, validator.Apply(validator.MaxLen("title", "éééé", 3)))
	})

	t.Run("zero max disables the bound", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, validator.Apply(validator.Max("total_size", int64(1<<40), 0)))
	})

	t.Run("extract through wrapping", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("create video: %w", validator.Apply(validator.Required("title", "")))
		assert.Len(t, validator.ExtractValidationErrors(err), 1)
		assert.Nil(t, validator.ExtractValidationErrors(errors.New("other")))
	})
}
