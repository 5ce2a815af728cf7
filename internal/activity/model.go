package activity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type enumerates collaboration activity kinds.
type Type string

const (
	TypeNoteAdded    Type = "note_added"
	TypeNoteEdited   Type = "note_edited"
	TypeNoteDeleted  Type = "note_deleted"
	TypeMention      Type = "mention"
	TypeAssignment   Type = "assignment"
	TypeStatusChange Type = "status_change"
)

// ErrInvalidType indicates that an activity type is not recognised.
var ErrInvalidType = errors.New("activity: invalid type")

// ParseType validates raw input and returns a Type.
func ParseType(rawInput string) (Type, error) {
	switch value := Type(strings.ToLower(strings.TrimSpace(rawInput))); value {
	case TypeNoteAdded, TypeNoteEdited, TypeNoteDeleted, TypeMention, TypeAssignment, TypeStatusChange:
		return value, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, rawInput)
	}
}

// Activity is an immutable entry of the collaboration log.
type Activity struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	UserID        string                 `json:"userId"`
	UserName      string                 `json:"userName"`
	CustomerEmail string                 `json:"customerEmail"`
	Content       string                 `json:"content"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// Draft carries the caller-supplied fields of an activity; id and timestamp are stamped on insert.
type Draft struct {
	Type          Type
	UserID        string
	UserName      string
	CustomerEmail string
	Content       string
	Metadata      map[string]interface{}
}

// Stamp builds the full activity from the draft.
func (d Draft) Stamp(id string, createdAt time.Time) Activity {
	var metadata map[string]interface{}
	if len(d.Metadata) > 0 {
		metadata = make(map[string]interface{}, len(d.Metadata))
		for key, value := range d.Metadata {
			metadata[key] = value
		}
	}
	return Activity{
		ID:            id,
		Type:          d.Type,
		UserID:        d.UserID,
		UserName:      d.UserName,
		CustomerEmail: d.CustomerEmail,
		Content:       d.Content,
		Metadata:      metadata,
		CreatedAt:     createdAt,
	}
}

// IDProvider issues activity identifiers for a creation instant.
type IDProvider interface {
	NewID(at time.Time) (string, error)
}

type ulidProvider struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewULIDProvider returns an IDProvider whose ids sort by creation millisecond and
// stay strictly increasing within the same millisecond.
func NewULIDProvider() IDProvider {
	return &ulidProvider{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (p *ulidProvider) NewID(at time.Time) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	value, err := ulid.New(ulid.Timestamp(at), p.entropy)
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
