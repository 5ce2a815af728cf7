package notes

import (
	"context"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/team"
)

// EventKind names a note mutation.
type EventKind string

const (
	EventCreated         EventKind = "note_created"
	EventEdited          EventKind = "note_edited"
	EventDeleted         EventKind = "note_deleted"
	EventReactionToggled EventKind = "note_reaction_toggled"
	EventReplyAdded      EventKind = "note_reply_added"
	EventPinToggled      EventKind = "note_pin_toggled"
	EventAssigned        EventKind = "note_assigned"
	EventStatusChanged   EventKind = "note_status_changed"
	EventTagsChanged     EventKind = "note_tags_changed"
)

// Event is emitted by a board after every successful mutation.
type Event struct {
	Kind          EventKind
	CustomerEmail string
	Actor         team.Member
	Note          Note
	Previous      *Note
	Reply         *Reply
	OccurredAt    time.Time
}

// EventSink receives note events in mutation order.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event Event)

// Emit calls f.
func (f EventSinkFunc) Emit(ctx context.Context, event Event) {
	f(ctx, event)
}

// FanOut delivers each event to every sink in order.
type FanOut []EventSink

// Emit forwards the event to each non-nil sink.
func (sinks FanOut) Emit(ctx context.Context, event Event) {
	for _, sink := range sinks {
		if sink != nil {
			sink.Emit(ctx, event)
		}
	}
}

type discardSink struct{}

func (discardSink) Emit(context.Context, Event) {}
