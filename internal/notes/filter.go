package notes

import (
	"fmt"
	"strings"
)

// FilterMode selects which notes a member sees.
type FilterMode string

const (
	FilterAll      FilterMode = "all"
	FilterMine     FilterMode = "my"
	FilterAssigned FilterMode = "assigned"
	FilterPinned   FilterMode = "pinned"
)

// ParseFilterMode accepts an empty value as FilterAll.
func ParseFilterMode(rawInput string) (FilterMode, error) {
	switch value := FilterMode(strings.ToLower(strings.TrimSpace(rawInput))); value {
	case "":
		return FilterAll, nil
	case FilterAll, FilterMine, FilterAssigned, FilterPinned:
		return value, nil
	default:
		return "", fmt.Errorf("notes: invalid filter %q", rawInput)
	}
}

// Filter is the board view selection. Resolved and archived notes are dropped
// before the mode applies unless ShowResolved is set. Private notes are only
// visible to their author.
type Filter struct {
	Mode         FilterMode
	ShowResolved bool
}

// ApplyFilter returns the notes visible to viewerID, keeping board order.
func ApplyFilter(notes []Note, viewerID string, filter Filter) []Note {
	result := make([]Note, 0, len(notes))
	for _, note := range notes {
		if note.IsPrivate && note.Author.ID != viewerID {
			continue
		}
		if !filter.ShowResolved && note.Status != StatusActive {
			continue
		}
		if !filter.Mode.matches(note, viewerID) {
			continue
		}
		result = append(result, note)
	}
	return result
}

func (m FilterMode) matches(note Note, viewerID string) bool {
	switch m {
	case FilterMine:
		return viewerID != "" && note.Author.ID == viewerID
	case FilterAssigned:
		return viewerID != "" && note.AssignedTo == viewerID
	case FilterPinned:
		return note.IsPinned
	default:
		return true
	}
}
