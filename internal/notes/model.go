package notes

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// NoteType categorises a note.
type NoteType string

const (
	NoteTypeGeneral  NoteType = "general"
	NoteTypeSupport  NoteType = "support"
	NoteTypeSales    NoteType = "sales"
	NoteTypeBilling  NoteType = "billing"
	NoteTypeInternal NoteType = "internal"
)

// Priority ranks a note.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Status is the lifecycle state of a note.
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
	StatusArchived Status = "archived"
)

// ReactionType enumerates the supported reactions.
type ReactionType string

const (
	ReactionLike     ReactionType = "like"
	ReactionLove     ReactionType = "love"
	ReactionThumbsUp ReactionType = "thumbs_up"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidNoteID indicates that a note identifier is empty or exceeds storage bounds.
	ErrInvalidNoteID = errors.New("notes: invalid note id")
	// ErrInvalidCustomerEmail indicates that a customer context is missing.
	ErrInvalidCustomerEmail = errors.New("notes: invalid customer email")
	// ErrInvalidNoteType indicates an unknown note type.
	ErrInvalidNoteType = errors.New("notes: invalid note type")
	// ErrInvalidPriority indicates an unknown priority.
	ErrInvalidPriority = errors.New("notes: invalid priority")
	// ErrInvalidStatus indicates an unknown note status.
	ErrInvalidStatus = errors.New("notes: invalid status")
	// ErrInvalidReaction indicates an unknown reaction type.
	ErrInvalidReaction = errors.New("notes: invalid reaction")
)

// NewNoteID validates raw input and returns the trimmed identifier.
func NewNoteID(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidNoteID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidNoteID, maxIdentifierLength)
	}
	return trimmed, nil
}

// NormalizeCustomerEmail trims and lower-cases a customer email.
func NormalizeCustomerEmail(rawInput string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(rawInput))
	if normalized == "" || !strings.Contains(normalized, "@") {
		return "", fmt.Errorf("%w: %q", ErrInvalidCustomerEmail, rawInput)
	}
	if len(normalized) > 320 {
		return "", fmt.Errorf("%w: too long", ErrInvalidCustomerEmail)
	}
	return normalized, nil
}

// ParseNoteType accepts an empty value as the general type.
func ParseNoteType(rawInput string) (NoteType, error) {
	switch value := NoteType(strings.ToLower(strings.TrimSpace(rawInput))); value {
	case "":
		return NoteTypeGeneral, nil
	case NoteTypeGeneral, NoteTypeSupport, NoteTypeSales, NoteTypeBilling, NoteTypeInternal:
		return value, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidNoteType, rawInput)
	}
}

// ParsePriority accepts an empty value as medium.
func ParsePriority(rawInput string) (Priority, error) {
	switch value := Priority(strings.ToLower(strings.TrimSpace(rawInput))); value {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return value, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, rawInput)
	}
}

// ParseStatus validates a note status.
func ParseStatus(rawInput string) (Status, error) {
	switch value := Status(strings.ToLower(strings.TrimSpace(rawInput))); value {
	case StatusActive, StatusResolved, StatusArchived:
		return value, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, rawInput)
	}
}

// ParseReaction validates a reaction type.
func ParseReaction(rawInput string) (ReactionType, error) {
	switch value := ReactionType(strings.ToLower(strings.TrimSpace(rawInput))); value {
	case ReactionLike, ReactionLove, ReactionThumbsUp:
		return value, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReaction, rawInput)
	}
}

// Author identifies who wrote a note or reply.
type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar,omitempty"`
}

// Reaction is a single member's reaction to a note.
type Reaction struct {
	UserID   string       `json:"userId"`
	Type     ReactionType `json:"type"`
	UserName string       `json:"userName"`
}

// Reply is an entry of a note's discussion thread.
type Reply struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Note is a customer note held by a board.
type Note struct {
	ID             string     `json:"id"`
	CustomerEmail  string     `json:"customerEmail"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
	Author         Author     `json:"author"`
	Type           NoteType   `json:"type"`
	Priority       Priority   `json:"priority"`
	IsPrivate      bool       `json:"isPrivate"`
	IsPinned       bool       `json:"isPinned"`
	Mentions       []string   `json:"mentions"`
	Tags           []string   `json:"tags"`
	AssignedTo     string     `json:"assignedTo,omitempty"`
	AssignedToName string     `json:"assignedToName,omitempty"`
	Status         Status     `json:"status"`
	Reactions      []Reaction `json:"reactions"`
	Replies        []Reply    `json:"replies"`
}

// Clone returns a deep copy so callers never share slices with the board.
func (n Note) Clone() Note {
	clone := n
	if n.UpdatedAt != nil {
		updatedAt := *n.UpdatedAt
		clone.UpdatedAt = &updatedAt
	}
	clone.Mentions = append([]string{}, n.Mentions...)
	clone.Tags = append([]string{}, n.Tags...)
	clone.Reactions = append([]Reaction{}, n.Reactions...)
	clone.Replies = append([]Reply{}, n.Replies...)
	return clone
}

// ReactionBy returns the reaction recorded for the user, if any.
func (n Note) ReactionBy(userID string) (Reaction, bool) {
	for _, reaction := range n.Reactions {
		if reaction.UserID == userID {
			return reaction, true
		}
	}
	return Reaction{}, false
}

// ReactionCounts tallies reactions by type.
func (n Note) ReactionCounts() map[ReactionType]int {
	counts := make(map[ReactionType]int, 3)
	for _, reaction := range n.Reactions {
		counts[reaction.Type]++
	}
	return counts
}

// Draft carries the fields supplied when adding a note.
type Draft struct {
	Content    string
	Type       NoteType
	Priority   Priority
	IsPrivate  bool
	Tags       []string
	AssignedTo string
}

// normalizeTags trims tags, drops empties and duplicates, and keeps first-seen order.
func normalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, duplicate := seen[key]; duplicate {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
