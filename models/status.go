package models

// Role is a user's role inside a group.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleNone   Role = "NONE"
)

// IsAdmin reports whether the role may moderate the group.
func (r Role) IsAdmin() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Status is shared by groups, group_join_requests and events.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

type AttendanceStatus string

const (
	AttendancePending  AttendanceStatus = "PENDING"
	AttendanceGoing    AttendanceStatus = "GOING"
	AttendanceRejected AttendanceStatus = "REJECTED"
)

const (
	PrivacyPublic   = "PUBLIC"
	VisibilityGroup = "GROUP"
)
