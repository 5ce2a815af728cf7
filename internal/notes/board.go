package notes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/team"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errMissingRoster = errors.New("roster is required")

// Roster is the member lookup a board needs to attribute notes and resolve mentions.
type Roster interface {
	Member(memberID string) (team.Member, bool)
	ResolveMentions(content string) []string
}

// Storage persists the notes of a board.
type Storage interface {
	SaveNote(ctx context.Context, note Note) error
	DeleteNote(ctx context.Context, customerEmail string, noteID string) error
	ListNotes(ctx context.Context, customerEmail string) ([]Note, error)
}

// IDProvider issues note and reply identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// IDProviderFunc adapts a function to IDProvider.
type IDProviderFunc func() (string, error)

// NewID calls f.
func (f IDProviderFunc) NewID() (string, error) {
	return f()
}

// NewUUIDProvider issues time-ordered UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return IDProviderFunc(func() (string, error) {
		value, err := uuid.NewV7()
		if err != nil {
			return "", err
		}
		return value.String(), nil
	})
}

// BoardConfig describes the dependencies of a customer board.
type BoardConfig struct {
	CustomerEmail string
	Roster        Roster
	Events        EventSink
	Storage       Storage
	Clock         func() time.Time
	IDs           IDProvider
	Logger        *zap.Logger
}

// Board holds the notes of one customer, newest first.
//
// Operations that cannot apply (blank content, unknown actor, unknown note)
// return false and leave the board untouched.
type Board struct {
	customerEmail string
	roster        Roster
	events        EventSink
	storage       Storage
	clock         func() time.Time
	ids           IDProvider
	logger        *zap.Logger

	mu    sync.Mutex
	notes []Note
}

// NewBoard constructs an empty board for the customer.
func NewBoard(cfg BoardConfig) (*Board, error) {
	customerEmail, err := NormalizeCustomerEmail(cfg.CustomerEmail)
	if err != nil {
		return nil, err
	}
	if cfg.Roster == nil {
		return nil, errMissingRoster
	}
	events := cfg.Events
	if events == nil {
		events = discardSink{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := cfg.IDs
	if ids == nil {
		ids = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Board{
		customerEmail: customerEmail,
		roster:        cfg.Roster,
		events:        events,
		storage:       cfg.Storage,
		clock:         clock,
		ids:           ids,
		logger:        logger.With(zap.String("customer_email", customerEmail)),
		notes:         []Note{},
	}, nil
}

// CustomerEmail returns the normalized customer the board belongs to.
func (b *Board) CustomerEmail() string {
	return b.customerEmail
}

// Hydrate replaces the board contents with the persisted notes.
func (b *Board) Hydrate(ctx context.Context) error {
	if b.storage == nil {
		return nil
	}
	loaded, err := b.storage.ListNotes(ctx, b.customerEmail)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notes = make([]Note, 0, len(loaded))
	for _, note := range loaded {
		b.notes = append(b.notes, note.Clone())
	}
	return nil
}

// AddNote prepends a note written by actorID.
func (b *Board) AddNote(ctx context.Context, actorID string, draft Draft) (Note, bool) {
	content := strings.TrimSpace(draft.Content)
	if content == "" {
		return Note{}, false
	}
	actor, ok := b.roster.Member(actorID)
	if !ok {
		return Note{}, false
	}

	noteID, err := b.ids.NewID()
	if err != nil {
		b.logger.Error("note id generation failed", zap.Error(err))
		return Note{}, false
	}

	noteType := draft.Type
	if noteType == "" {
		noteType = NoteTypeGeneral
	}
	priority := draft.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	note := Note{
		ID:            noteID,
		CustomerEmail: b.customerEmail,
		Content:       content,
		CreatedAt:     b.clock(),
		Author:        authorOf(actor),
		Type:          noteType,
		Priority:      priority,
		IsPrivate:     draft.IsPrivate,
		Mentions:      b.roster.ResolveMentions(content),
		Tags:          normalizeTags(draft.Tags),
		Status:        StatusActive,
		Reactions:     []Reaction{},
		Replies:       []Reply{},
	}
	if assigneeID := strings.TrimSpace(draft.AssignedTo); assigneeID != "" {
		if assignee, found := b.roster.Member(assigneeID); found {
			note.AssignedTo = assignee.ID
			note.AssignedToName = assignee.Name
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.notes = append([]Note{note}, b.notes...)
	b.commit(ctx, Event{Kind: EventCreated, Actor: actor, Note: note})
	return note.Clone(), true
}

// EditNote replaces the content of a note and re-resolves its mentions.
func (b *Board) EditNote(ctx context.Context, actorID string, noteID string, content string) (Note, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Note{}, false
	}
	actor, ok := b.roster.Member(actorID)
	if !ok {
		return Note{}, false
	}
	return b.mutate(ctx, noteID, actor, EventEdited, func(note *Note) bool {
		if note.Content == trimmed {
			return false
		}
		note.Content = trimmed
		note.Mentions = b.roster.ResolveMentions(trimmed)
		return true
	})
}

// ToggleReaction adds, replaces or removes the actor's reaction. The same type
// twice removes it; a different type replaces it.
func (b *Board) ToggleReaction(ctx context.Context, actorID string, noteID string, reaction ReactionType) (Note, bool) {
	actor, ok := b.roster.Member(actorID)
	if !ok {
		return Note{}, false
	}
	if _, err := ParseReaction(string(reaction)); err != nil {
		return Note{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	index := b.indexOf(noteID)
	if index < 0 {
		return Note{}, false
	}
	previous := b.notes[index].Clone()
	note := &b.notes[index]

	reactions := make([]Reaction, 0, len(note.Reactions)+1)
	handled := false
	for _, existing := range note.Reactions {
		if existing.UserID != actor.ID {
			reactions = append(reactions, existing)
			continue
		}
		handled = true
		if existing.Type != reaction {
			reactions = append(reactions, Reaction{UserID: actor.ID, Type: reaction, UserName: actor.Name})
		}
	}
	if !handled {
		reactions = append(reactions, Reaction{UserID: actor.ID, Type: reaction, UserName: actor.Name})
	}
	note.Reactions = reactions

	updated := note.Clone()
	b.commit(ctx, Event{Kind: EventReactionToggled, Actor: actor, Note: updated, Previous: &previous})
	return updated, true
}

// AddReply appends a reply to the note's thread.
func (b *Board) AddReply(ctx context.Context, actorID string, noteID string, text string) (Note, bool) {
	content := strings.TrimSpace(text)
	if content == "" {
		return Note{}, false
	}
	actor, ok := b.roster.Member(actorID)
	if !ok {
		return Note{}, false
	}
	replyID, err := b.ids.NewID()
	if err != nil {
		b.logger.Error("reply id generation failed", zap.Error(err), zap.String("note_id", noteID))
		return Note{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	index := b.indexOf(noteID)
	if index < 0 {
		return Note{}, false
	}
	previous := b.notes[index].Clone()
	note := &b.notes[index]
	now := b.clock()
	reply := Reply{ID: replyID, Content: content, Author: authorOf(actor), CreatedAt: now}
	note.Replies = append(note.Replies, reply)
	note.UpdatedAt = &now

	updated := note.Clone()
	b.commit(ctx, Event{Kind: EventReplyAdded, Actor: actor, Note: updated, Previous: &previous, Reply: &reply})
	return updated, true
}

// TogglePin flips the pinned flag. The actor does not need to be on the roster.
func (b *Board) TogglePin(ctx context.Context, actorID string, noteID string) (Note, bool) {
	actor, ok := b.roster.Member(actorID)
	if !ok {
		actor = team.Member{ID: strings.TrimSpace(actorID)}
	}
	return b.mutate(ctx, noteID, actor, EventPinToggled, func(note *Note) bool {
		note.IsPinned = !note.IsPinned
		return true
	})
}

// Assign hands the note to assigneeID. An empty assignee clears the assignment.
func (b *Board) Assign(ctx context.Context, actorID string, noteID string, assigneeID string) (Note, bool) {
	actor, ok := b.roster.Member(actorID)
	if !ok {
		return Note{}, false
	}
	var assignee team.Member
	if trimmed := strings.TrimSpace(assigneeID); trimmed != "" {
		found, exists := b.roster.Member(trimmed)
		if !exists {
			return Note{}, false
		}
		assignee = found
	}
	return b.mutate(ctx, noteID, actor, EventAssigned, func(note *Note) bool {
		if note.AssignedTo == assignee.ID {
			return false
		}
		note.AssignedTo = assignee.ID
		note.AssignedToName = assignee.Name
		return true
	})
}

// SetStatus moves the note between active, resolved and archived.
func (b *Board) SetStatus(ctx context.Context, actorID string, noteID string, status Status) (Note, bool) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Note{}, false
	}
	actor, ok := b.roster.Member(actorID)
	if !ok {
		return Note{}, false
	}
	return b.mutate(ctx, noteID, actor, EventStatusChanged, func(note *Note) bool {
		if note.Status == status {
			return false
		}
		note.Status = status
		return true
	})
}

// SetTags replaces the note's tag set.
func (b *Board) SetTags(ctx context.Context, actorID string, noteID string, tags []string) (Note, bool) {
	actor, ok := b.roster.Member(actorID)
	if !ok {
		return Note{}, false
	}
	normalized := normalizeTags(tags)
	return b.mutate(ctx, noteID, actor, EventTagsChanged, func(note *Note) bool {
		if equalStrings(note.Tags, normalized) {
			return false
		}
		note.Tags = normalized
		return true
	})
}

// DeleteNote removes the note from the board.
func (b *Board) DeleteNote(ctx context.Context, actorID string, noteID string) (Note, bool) {
	actor, ok := b.roster.Member(actorID)
	if !ok {
		return Note{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	index := b.indexOf(noteID)
	if index < 0 {
		return Note{}, false
	}
	removed := b.notes[index]
	b.notes = append(b.notes[:index:index], b.notes[index+1:]...)

	if b.storage != nil {
		if err := b.storage.DeleteNote(ctx, b.customerEmail, removed.ID); err != nil {
			b.logger.Warn("note delete not persisted", zap.Error(err), zap.String("note_id", removed.ID))
		}
	}
	b.events.Emit(ctx, Event{
		Kind:          EventDeleted,
		CustomerEmail: b.customerEmail,
		Actor:         actor,
		Note:          removed.Clone(),
		OccurredAt:    b.clock(),
	})
	return removed.Clone(), true
}

// Note returns a copy of the note with the given id.
func (b *Board) Note(noteID string) (Note, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	index := b.indexOf(noteID)
	if index < 0 {
		return Note{}, false
	}
	return b.notes[index].Clone(), true
}

// Notes returns copies of every note, newest first.
func (b *Board) Notes() []Note {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]Note, 0, len(b.notes))
	for _, note := range b.notes {
		result = append(result, note.Clone())
	}
	return result
}

// List returns the notes visible to viewerID under the filter.
func (b *Board) List(viewerID string, filter Filter) []Note {
	return ApplyFilter(b.Notes(), viewerID, filter)
}

// mutate applies change to the note under the board lock, stamps UpdatedAt,
// persists the result and emits kind. The change reports whether anything moved.
func (b *Board) mutate(ctx context.Context, noteID string, actor team.Member, kind EventKind, change func(note *Note) bool) (Note, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	index := b.indexOf(noteID)
	if index < 0 {
		return Note{}, false
	}
	previous := b.notes[index].Clone()
	note := &b.notes[index]
	now := b.clock()
	if !change(note) {
		return Note{}, false
	}
	note.UpdatedAt = &now

	updated := note.Clone()
	b.commit(ctx, Event{Kind: kind, Actor: actor, Note: updated, Previous: &previous})
	return updated, true
}

// commit persists the event's note and emits the event. Callers hold b.mu so
// events leave the board in mutation order.
func (b *Board) commit(ctx context.Context, event Event) {
	if b.storage != nil {
		if err := b.storage.SaveNote(ctx, event.Note); err != nil {
			b.logger.Warn("note change not persisted",
				zap.Error(err),
				zap.String("note_id", event.Note.ID),
				zap.String("event", string(event.Kind)))
		}
	}
	event.CustomerEmail = b.customerEmail
	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.clock()
	}
	b.events.Emit(ctx, event)
}

func (b *Board) indexOf(noteID string) int {
	trimmed := strings.TrimSpace(noteID)
	if trimmed == "" {
		return -1
	}
	for index := range b.notes {
		if b.notes[index].ID == trimmed {
			return index
		}
	}
	return -1
}

func authorOf(member team.Member) Author {
	return Author{ID: member.ID, Name: member.Name, AvatarURL: member.AvatarURL}
}

func equalStrings(left, right []string) bool {
	if len(left) != len(right) {
		return false
	}
	for index := range left {
		if left[index] != right[index] {
			return false
		}
	}
	return true
}
