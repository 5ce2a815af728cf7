package collab

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/collab/internal/activity"
	"github.com/MarcoPoloResearchLab/collab/internal/notes"
	"github.com/MarcoPoloResearchLab/collab/internal/realtime"
)

const summaryRunes = 80

// NoteActivityBridge mirrors note events into the activity log and announces
// every change on the customer's realtime topic.
type NoteActivityBridge struct {
	store *Store
}

// NewNoteActivityBridge binds the bridge to the store that owns the log.
func NewNoteActivityBridge(store *Store) *NoteActivityBridge {
	return &NoteActivityBridge{store: store}
}

// Emit implements notes.EventSink.
func (b *NoteActivityBridge) Emit(ctx context.Context, event notes.Event) {
	if b == nil || b.store == nil {
		return
	}
	b.store.broker.Publish(realtime.Message{
		Topic:         realtime.CustomerTopic(event.CustomerEmail),
		EventType:     realtime.EventNoteChanged,
		CustomerEmail: event.CustomerEmail,
		NoteIDs:       []string{event.Note.ID},
		NoteEvent:     string(event.Kind),
		MemberID:      event.Actor.ID,
		Timestamp:     event.OccurredAt,
	})
	if event.Actor.ID == "" {
		return
	}
	for _, draft := range activitiesFor(event) {
		b.store.AddActivity(ctx, draft)
	}
}

func activitiesFor(event notes.Event) []activity.Draft {
	base := activity.Draft{
		UserID:        event.Actor.ID,
		UserName:      event.Actor.Name,
		CustomerEmail: event.CustomerEmail,
	}
	note := event.Note
	noteMeta := func(extra map[string]interface{}) map[string]interface{} {
		metadata := map[string]interface{}{"noteId": note.ID}
		for key, value := range extra {
			metadata[key] = value
		}
		return metadata
	}
	with := func(kind activity.Type, content string, metadata map[string]interface{}) activity.Draft {
		draft := base
		draft.Type = kind
		draft.Content = content
		draft.Metadata = metadata
		return draft
	}

	switch event.Kind {
	case notes.EventCreated:
		drafts := []activity.Draft{
			with(activity.TypeNoteAdded, fmt.Sprintf("added a note: %s", summarize(note.Content)), noteMeta(map[string]interface{}{
				"noteType": string(note.Type),
				"priority": string(note.Priority),
			})),
		}
		for _, mentionedID := range note.Mentions {
			drafts = append(drafts, with(activity.TypeMention, "mentioned a teammate in a note", noteMeta(map[string]interface{}{
				"mentionedUserId": mentionedID,
			})))
		}
		if note.AssignedTo != "" {
			drafts = append(drafts, with(activity.TypeAssignment, fmt.Sprintf("assigned a note to %s", note.AssignedToName), noteMeta(map[string]interface{}{
				"assignedTo": note.AssignedTo,
			})))
		}
		return drafts
	case notes.EventEdited:
		return []activity.Draft{with(activity.TypeNoteEdited, "edited a note", noteMeta(map[string]interface{}{"action": "edit"}))}
	case notes.EventReplyAdded:
		content := "replied to a note"
		if event.Reply != nil {
			content = fmt.Sprintf("replied to a note: %s", summarize(event.Reply.Content))
		}
		return []activity.Draft{with(activity.TypeNoteEdited, content, noteMeta(map[string]interface{}{"action": "reply"}))}
	case notes.EventPinToggled:
		action, content := "pin", "pinned a note"
		if !note.IsPinned {
			action, content = "unpin", "unpinned a note"
		}
		return []activity.Draft{with(activity.TypeNoteEdited, content, noteMeta(map[string]interface{}{"action": action}))}
	case notes.EventTagsChanged:
		return []activity.Draft{with(activity.TypeNoteEdited, "updated note tags", noteMeta(map[string]interface{}{
			"action": "tags",
			"tags":   append([]string{}, note.Tags...),
		}))}
	case notes.EventAssigned:
		if note.AssignedTo == "" {
			return []activity.Draft{with(activity.TypeAssignment, "unassigned a note", noteMeta(map[string]interface{}{"assignedTo": ""}))}
		}
		return []activity.Draft{with(activity.TypeAssignment, fmt.Sprintf("assigned a note to %s", note.AssignedToName), noteMeta(map[string]interface{}{
			"assignedTo": note.AssignedTo,
		}))}
	case notes.EventStatusChanged:
		previous := ""
		if event.Previous != nil {
			previous = string(event.Previous.Status)
		}
		return []activity.Draft{with(activity.TypeStatusChange, fmt.Sprintf("marked a note %s", note.Status), noteMeta(map[string]interface{}{
			"from": previous,
			"to":   string(note.Status),
		}))}
	case notes.EventDeleted:
		return []activity.Draft{with(activity.TypeNoteDeleted, "deleted a note", noteMeta(nil))}
	default:
		return nil
	}
}

func summarize(content string) string {
	if utf8.RuneCountInString(content) <= summaryRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:summaryRunes]) + "…"
}
