// Package models - organization_member.go defines user-to-organization
// membership with a fixed role vocabulary. The creating user is always the
// organization's OWNER; there is no path that leaves an organization ownerless.
package models

import "time"

// MemberRole is the role a user holds within an organization.
type MemberRole string

const (
	RoleOwner  MemberRole = "OWNER"
	RoleAdmin  MemberRole = "ADMIN"
	RoleEditor MemberRole = "EDITOR"
	RoleViewer MemberRole = "VIEWER"
)

// Valid returns true if the role is one of the known values.
func (r MemberRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// AtLeast reports whether the role grants the privileges of the given role.
func (r MemberRole) AtLeast(min MemberRole) bool {
	return roleRank(r) >= roleRank(min)
}

func roleRank(r MemberRole) int {
	switch r {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// OrganizationMember represents a user's membership in an organization
type OrganizationMember struct {
	OrganizationID string     `json:"organization_id"`
	UserID         string     `json:"user_id"`
	Role           MemberRole `json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
}

// OrganizationMemberWithUser includes user details for the members listing
type OrganizationMemberWithUser struct {
	OrganizationID string     `json:"organization_id"`
	UserID         string     `json:"user_id"`
	Role           MemberRole `json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
	UserName       string     `json:"user_name"`
	UserEmail      string     `json:"user_email"`
}
