package team

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role groups members for display purposes only.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
	RoleViewer  Role = "viewer"
)

// Status is the presence state of a member.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

var (
	// ErrInvalidRole indicates that a role value is not recognised.
	ErrInvalidRole = errors.New("team: invalid role")
	// ErrInvalidStatus indicates that a status value is not recognised.
	ErrInvalidStatus = errors.New("team: invalid status")
)

// ParseRole validates raw input and returns a Role.
func ParseRole(rawInput string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(rawInput))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleManager:
		return RoleManager, nil
	case RoleAgent:
		return RoleAgent, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, rawInput)
	}
}

// ParseStatus validates raw input and returns a Status.
func ParseStatus(rawInput string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(rawInput))) {
	case StatusOnline:
		return StatusOnline, nil
	case StatusAway:
		return StatusAway, nil
	case StatusBusy:
		return StatusBusy, nil
	case StatusOffline:
		return StatusOffline, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, rawInput)
	}
}

// Member is a single roster entry.
type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar,omitempty"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Initials returns up to two upper-cased initials of the display name.
func (m Member) Initials() string {
	fields := strings.Fields(m.Name)
	if len(fields) == 0 {
		return ""
	}
	initials := make([]rune, 0, 2)
	for _, field := range fields {
		initials = append(initials, []rune(strings.ToUpper(field))[0])
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}
