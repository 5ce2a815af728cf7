package notes

import (
	"context"
	"reflect"
	"testing"
)

func TestAddNotePrependsAndResolvesMentions(t *testing.T) {
	sink := &recordingSink{}
	board := newTestBoard(t, sink, nil)
	ctx := context.Background()

	first, ok := board.AddNote(ctx, "1", Draft{Content: "first"})
	if !ok {
		t.Fatalf("expected first note to apply")
	}
	second, ok := board.AddNote(ctx, "2", Draft{Content: "  loop in @Emma Davis and @Nobody Here  ", Tags: []string{"vip", " VIP", "", "renewal"}})
	if !ok {
		t.Fatalf("expected second note to apply")
	}

	notes := board.Notes()
	if len(notes) != 2 || notes[0].ID != second.ID || notes[1].ID != first.ID {
		t.Fatalf("expected newest first, got %#v", notes)
	}
	if second.Content != "loop in @Emma Davis and @Nobody Here" {
		t.Fatalf("expected trimmed content, got %q", second.Content)
	}
	if !reflect.DeepEqual(second.Mentions, []string{"3"}) {
		t.Fatalf("unexpected mentions: %#v", second.Mentions)
	}
	if !reflect.DeepEqual(second.Tags, []string{"vip", "renewal"}) {
		t.Fatalf("unexpected tags: %#v", second.Tags)
	}
	if second.Type != NoteTypeGeneral || second.Priority != PriorityMedium || second.Status != StatusActive {
		t.Fatalf("unexpected defaults: %#v", second)
	}
	if second.Author.Name != "Mike Chen" || second.CustomerEmail != testCustomerEmail {
		t.Fatalf("unexpected attribution: %#v", second)
	}
	if kinds := sink.kinds(); !reflect.DeepEqual(kinds, []EventKind{EventCreated, EventCreated}) {
		t.Fatalf("unexpected events: %#v", kinds)
	}
}

func TestAddNoteRejectsBlankContentAndUnknownActor(t *testing.T) {
	sink := &recordingSink{}
	board := newTestBoard(t, sink, nil)
	ctx := context.Background()

	if _, ok := board.AddNote(ctx, "1", Draft{Content: "   "}); ok {
		t.Fatalf("expected blank note to be rejected")
	}
	if _, ok := board.AddNote(ctx, "", Draft{Content: "hello"}); ok {
		t.Fatalf("expected note without actor to be rejected")
	}
	if _, ok := board.AddNote(ctx, "99", Draft{Content: "hello"}); ok {
		t.Fatalf("expected note from unknown actor to be rejected")
	}
	if len(board.Notes()) != 0 || len(sink.kinds()) != 0 {
		t.Fatalf("expected untouched board")
	}
}

func TestToggleReactionTwiceRestoresReactions(t *testing.T) {
	board := newTestBoard(t, nil, nil)
	ctx := context.Background()
	note, _ := board.AddNote(ctx, "1", Draft{Content: "react to me"})
	if _, ok := board.ToggleReaction(ctx, "2", note.ID, ReactionLove); !ok {
		t.Fatalf("expected seed reaction")
	}
	before, _ := board.Note(note.ID)

	if _, ok := board.ToggleReaction(ctx, "3", note.ID, ReactionLike); !ok {
		t.Fatalf("expected reaction to apply")
	}
	after, ok := board.ToggleReaction(ctx, "3", note.ID, ReactionLike)
	if !ok {
		t.Fatalf("expected second toggle to apply")
	}
	if !reflect.DeepEqual(after.Reactions, before.Reactions) {
		t.Fatalf("expected reactions restored: before %#v after %#v", before.Reactions, after.Reactions)
	}
}

func TestToggleReactionReplacesDifferentType(t *testing.T) {
	board := newTestBoard(t, nil, nil)
	ctx := context.Background()
	note, _ := board.AddNote(ctx, "1", Draft{Content: "react to me"})

	board.ToggleReaction(ctx, "2", note.ID, ReactionLike)
	updated, ok := board.ToggleReaction(ctx, "2", note.ID, ReactionThumbsUp)
	if !ok {
		t.Fatalf("expected replacement to apply")
	}
	if len(updated.Reactions) != 1 {
		t.Fatalf("expected a single reaction, got %#v", updated.Reactions)
	}
	if updated.Reactions[0].Type != ReactionThumbsUp || updated.Reactions[0].UserName != "Mike Chen" {
		t.Fatalf("unexpected reaction: %#v", updated.Reactions[0])
	}
	if counts := updated.ReactionCounts(); counts[ReactionLike] != 0 || counts[ReactionThumbsUp] != 1 {
		t.Fatalf("unexpected counts: %#v", counts)
	}
	if _, ok := board.ToggleReaction(ctx, "2", note.ID, ReactionType("angry")); ok {
		t.Fatalf("expected unknown reaction type to be rejected")
	}
}

func TestAddReplyAppendsInOrder(t *testing.T) {
	sink := &recordingSink{}
	board := newTestBoard(t, sink, nil)
	ctx := context.Background()
	note, _ := board.AddNote(ctx, "1", Draft{Content: "thread"})

	if _, ok := board.AddReply(ctx, "2", note.ID, "  "); ok {
		t.Fatalf("expected blank reply to be rejected")
	}
	if _, ok := board.AddReply(ctx, "2", "missing", "hello"); ok {
		t.Fatalf("expected reply to unknown note to be rejected")
	}
	board.AddReply(ctx, "2", note.ID, "first reply")
	updated, ok := board.AddReply(ctx, "3", note.ID, " second reply ")
	if !ok {
		t.Fatalf("expected reply to apply")
	}
	if len(updated.Replies) != 2 || updated.Replies[0].Content != "first reply" || updated.Replies[1].Content != "second reply" {
		t.Fatalf("unexpected replies: %#v", updated.Replies)
	}
	if updated.UpdatedAt == nil {
		t.Fatalf("expected updatedAt to be stamped")
	}
	last := sink.events[len(sink.events)-1]
	if last.Kind != EventReplyAdded || last.Reply == nil || last.Reply.Author.ID != "3" {
		t.Fatalf("unexpected reply event: %#v", last)
	}
}

func TestTogglePinDoesNotRequireRosterActor(t *testing.T) {
	board := newTestBoard(t, nil, nil)
	ctx := context.Background()
	note, _ := board.AddNote(ctx, "1", Draft{Content: "pin me"})

	pinned, ok := board.TogglePin(ctx, "", note.ID)
	if !ok || !pinned.IsPinned {
		t.Fatalf("expected pin to apply, got %#v", pinned)
	}
	unpinned, ok := board.TogglePin(ctx, "someone", note.ID)
	if !ok || unpinned.IsPinned {
		t.Fatalf("expected unpin to apply, got %#v", unpinned)
	}
	if _, ok := board.TogglePin(ctx, "1", "missing"); ok {
		t.Fatalf("expected unknown note to be rejected")
	}
}

func TestAssignStatusTagsAndDelete(t *testing.T) {
	sink := &recordingSink{}
	board := newTestBoard(t, sink, nil)
	ctx := context.Background()
	note, _ := board.AddNote(ctx, "1", Draft{Content: "follow up"})

	assigned, ok := board.Assign(ctx, "1", note.ID, "3")
	if !ok || assigned.AssignedTo != "3" || assigned.AssignedToName != "Emma Davis" {
		t.Fatalf("unexpected assignment: %#v", assigned)
	}
	if _, ok := board.Assign(ctx, "1", note.ID, "3"); ok {
		t.Fatalf("expected repeated assignment to be a no-op")
	}
	if _, ok := board.Assign(ctx, "1", note.ID, "99"); ok {
		t.Fatalf("expected unknown assignee to be rejected")
	}

	resolved, ok := board.SetStatus(ctx, "3", note.ID, StatusResolved)
	if !ok || resolved.Status != StatusResolved {
		t.Fatalf("unexpected status: %#v", resolved)
	}
	if _, ok := board.SetStatus(ctx, "3", note.ID, Status("closed")); ok {
		t.Fatalf("expected unknown status to be rejected")
	}

	tagged, ok := board.SetTags(ctx, "3", note.ID, []string{"billing", "billing"})
	if !ok || !reflect.DeepEqual(tagged.Tags, []string{"billing"}) {
		t.Fatalf("unexpected tags: %#v", tagged.Tags)
	}

	edited, ok := board.EditNote(ctx, "1", note.ID, "follow up with @Mike Chen")
	if !ok || !reflect.DeepEqual(edited.Mentions, []string{"2"}) {
		t.Fatalf("unexpected edit: %#v", edited)
	}

	if _, ok := board.DeleteNote(ctx, "1", note.ID); !ok {
		t.Fatalf("expected delete to apply")
	}
	if _, ok := board.Note(note.ID); ok {
		t.Fatalf("expected note to be gone")
	}

	want := []EventKind{EventCreated, EventAssigned, EventStatusChanged, EventTagsChanged, EventEdited, EventDeleted}
	if kinds := sink.kinds(); !reflect.DeepEqual(kinds, want) {
		t.Fatalf("unexpected events: got %#v want %#v", kinds, want)
	}
	for _, event := range sink.events {
		if event.CustomerEmail != testCustomerEmail {
			t.Fatalf("expected events scoped to the customer, got %#v", event)
		}
	}
}

func TestNotesReturnsCopies(t *testing.T) {
	board := newTestBoard(t, nil, nil)
	ctx := context.Background()
	note, _ := board.AddNote(ctx, "1", Draft{Content: "immutable", Tags: []string{"a"}})

	listed := board.Notes()
	listed[0].Tags[0] = "mutated"
	listed[0].Content = "mutated"

	stored, _ := board.Note(note.ID)
	if stored.Content != "immutable" || stored.Tags[0] != "a" {
		t.Fatalf("expected board state to be isolated from callers, got %#v", stored)
	}
}
