package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		expected Role
	}{
		{name: "admin string", raw: "admin", expected: RoleAdmin},
		{name: "admin legacy zero", raw: "0", expected: RoleAdmin},
		{name: "admin mixed case", raw: " Admin ", expected: RoleAdmin},
		{name: "main moderator", raw: "main_moderator", expected: RoleMainModerator},
		{name: "moderator alias", raw: "moderator", expected: RoleMainModerator},
		{name: "legacy 5.1 string", raw: "5.1", expected: RoleMainModerator},
		{name: "legacy 5.1 number", raw: 5.1, expected: RoleMainModerator},
		{name: "json number", raw: float64(2), expected: RoleMainModerator},
		{name: "int contributor", raw: 1, expected: RoleContributor},
		{name: "int64 admin", raw: int64(3), expected: RoleAdmin},
		{name: "user alias", raw: "user", expected: RoleContributor},
		{name: "already canonical", raw: RoleAdmin, expected: RoleAdmin},
		{name: "unknown string", raw: "viewer", expected: RoleUnknown},
		{name: "nil", raw: nil, expected: RoleUnknown},
		{name: "bool", raw: true, expected: RoleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseRole(tt.raw))
		})
	}
}

func TestRole_CanModerate(t *testing.T) {
	assert.False(t, RoleUnknown.CanModerate())
	assert.False(t, RoleContributor.CanModerate())
	assert.True(t, RoleMainModerator.CanModerate())
	assert.True(t, RoleAdmin.CanModerate())
	assert.Equal(t, "main_moderator", RoleMainModerator.String())
}
