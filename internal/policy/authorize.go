package policy

import "strings"

// Role identifies the caller on whose behalf a tool call is dispatched.
type Role string

const (
	RoleCitizen Role = "citizen"
	RoleDeputy  Role = "deputy"
	RoleAdmin   Role = "admin"
)

// gatedTools maps tool names to the roles allowed to invoke them. Tools not
// listed here are open to every caller.
var gatedTools = map[string][]Role{
	"generate_document":   {RoleDeputy, RoleAdmin},
	"send_correspondence": {RoleDeputy, RoleAdmin},
}

// ParseRole normalizes a role string; unknown values degrade to citizen, the
// least privileged role.
func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleDeputy:
		return RoleDeputy
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleCitizen
	}
}

// CanInvoke reports whether the role may dispatch the named tool.
func CanInvoke(role Role, tool string) bool {
	allowed, gated := gatedTools[tool]
	if !gated {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// IsGated reports whether the tool requires an authorization check at all.
func IsGated(tool string) bool {
	_, gated := gatedTools[tool]
	return gated
}
