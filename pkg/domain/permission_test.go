package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tracker/pkg/domain-errors"
)

func TestPermissionOrdering(t *testing.T) {
	ordered := []Permission{PermissionNone, PermissionPending, PermissionUser, PermissionAdmin, PermissionSuperAdmin}
	for i := 1; i < len(ordered); i++ {
		assert.True(t, ordered[i] > ordered[i-1], "%s must outrank %s", ordered[i], ordered[i-1])
	}

	assert.True(t, PermissionSuperAdmin.AtLeast(PermissionAdmin))
	assert.True(t, PermissionAdmin.AtLeast(PermissionAdmin))
	assert.False(t, PermissionUser.AtLeast(PermissionAdmin))
	assert.False(t, PermissionPending.AtLeast(PermissionUser))
	assert.False(t, PermissionNone.AtLeast(PermissionPending))
}

func TestParsePermission(t *testing.T) {
	t.Run("round-trips every persistable rank", func(t *testing.T) {
		for _, p := range []Permission{PermissionPending, PermissionUser, PermissionAdmin, PermissionSuperAdmin} {
			parsed, err := ParsePermission(p.String())
			require.NoError(t, err)
			assert.Equal(t, p, parsed)
		}
	})

	t.Run("rejects the none sentinel", func(t *testing.T) {
		_, err := ParsePermission("none")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects empty and unknown values", func(t *testing.T) {
		for _, raw := range []string{"", "owner", "ADMIN"} {
			_, err := ParsePermission(raw)
			assert.Error(t, err, "value %q", raw)
		}
	})
}
