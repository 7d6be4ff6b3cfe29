package rooms

import "fmt"

// Kind identifies the logical scope a room key is derived from.
type Kind string

const (
	KindRole       Kind = "role"
	KindDepartment Kind = "department"
	KindSession    Kind = "session"
	KindUser       Kind = "user"
	KindClass      Kind = "class"
)

// Room key prefixes. Key construction is centralized here so join-side and
// dispatch-side logic always agree on the key for the same logical target.
const (
	rolePrefix       = "role:"
	departmentPrefix = "department:"
	sessionPrefix    = "chat-session:"
	userPrefix       = "user:"
	classPrefix      = "class:"
)

// Resolve deterministically constructs a room key from a kind and its
// identifying value. Construction is pure: no side effects, no registration.
func Resolve(kind Kind, value string) (string, error) {
	if value == "" {
		return "", ErrEmptyRoomValue
	}

	switch kind {
	case KindRole:
		return rolePrefix + value, nil
	case KindDepartment:
		return departmentPrefix + value, nil
	case KindSession:
		return sessionPrefix + value, nil
	case KindUser:
		return userPrefix + value, nil
	case KindClass:
		return classPrefix + value, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRoomKind, kind)
	}
}

// RoleRoom returns the room key for a role scope, e.g. "role:teacher".
func RoleRoom(role string) string { return rolePrefix + role }

// DepartmentRoom returns the room key for a department scope.
func DepartmentRoom(department string) string { return departmentPrefix + department }

// SessionRoom returns the room key for a chat session.
func SessionRoom(sessionID string) string { return sessionPrefix + sessionID }

// UserRoom returns the per-user room key used for directed notifications.
func UserRoom(userID string) string { return userPrefix + userID }

// ClassRoom returns the room key for a live class presence group.
func ClassRoom(classID string) string { return classPrefix + classID }

// RolePrefix exposes the role room prefix for sentinel expansion of
// targetRoles=["all"] broadcasts.
func RolePrefix() string { return rolePrefix }
