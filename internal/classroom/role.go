package classroom

import "strings"

// Role is the self-declared role of a connection. It is trusted as sent.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole accepts "teacher" or "student" (case-insensitive).
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleTeacher:
		return RoleTeacher, true
	case RoleStudent:
		return RoleStudent, true
	}
	return "", false
}

// Actor identifies who performs an operation: the acting connection and the role it declared.
// Role is empty until the connection identifies itself.
type Actor struct {
	ConnID string
	Role   Role
}

// IsTeacher reports whether the actor declared the teacher role.
func (a Actor) IsTeacher() bool {
	return a.Role == RoleTeacher
}
