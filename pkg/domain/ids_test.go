package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tracker/pkg/domain-errors"
)

func TestParseKeys(t *testing.T) {
	t.Run("round-trips a valid UUID", func(t *testing.T) {
		raw := uuid.NewString()
		key, err := ParseOrgKey(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, key.String())
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := ParseUserKey("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		_, err := ParseDomainKey("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestIsZero(t *testing.T) {
	assert.True(t, UserKey{}.IsZero())
	assert.False(t, NewUserKey().IsZero())
	assert.True(t, OrgKey{}.IsZero())
	assert.False(t, NewOrgKey().IsZero())
}
