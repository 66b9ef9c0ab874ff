package models

import (
	"strconv"
	"strings"
)

// Role is the canonical caller role. Higher values include the rights of lower ones.
type Role int

const (
	RoleUnknown       Role = 0
	RoleContributor   Role = 1
	RoleMainModerator Role = 2
	RoleAdmin         Role = 3
)

// roleAliases maps every historical encoding of a role to its canonical value
var roleAliases = map[string]Role{
	"contributor":    RoleContributor,
	"user":           RoleContributor,
	"1":              RoleContributor,
	"main_moderator": RoleMainModerator,
	"moderator":      RoleMainModerator,
	"2":              RoleMainModerator,
	"5.1":            RoleMainModerator,
	"admin":          RoleAdmin,
	"0":              RoleAdmin,
	"3":              RoleAdmin,
}

// ParseRole normalizes a raw role value (string, integer or float) into a Role.
// Unrecognized values resolve to RoleUnknown.
func ParseRole(raw any) Role {
	var key string
	switch v := raw.(type) {
	case Role:
		return v
	case string:
		key = strings.ToLower(strings.TrimSpace(v))
	case int:
		key = strconv.Itoa(v)
	case int64:
		key = strconv.FormatInt(v, 10)
	case float64:
		key = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return RoleUnknown
	}
	if role, ok := roleAliases[key]; ok {
		return role
	}
	return RoleUnknown
}

// CanModerate reports whether the role may approve or reject articles
func (r Role) CanModerate() bool {
	return r >= RoleMainModerator
}

func (r Role) String() string {
	switch r {
	case RoleContributor:
		return "contributor"
	case RoleMainModerator:
		return "main_moderator"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}
