package activity

import (
	"fmt"
	"strings"
	"time"
)

// Category groups activity types for feed filtering.
type Category string

const (
	CategoryAll         Category = "all"
	CategoryNotes       Category = "notes"
	CategoryMentions    Category = "mentions"
	CategoryAssignments Category = "assignments"
)

// Window bounds the feed by creation time.
type Window string

const (
	WindowToday Window = "today"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
	WindowAll   Window = "all"
)

// ParseCategory accepts an empty value as CategoryAll.
func ParseCategory(rawInput string) (Category, error) {
	switch value := Category(strings.ToLower(strings.TrimSpace(rawInput))); value {
	case "":
		return CategoryAll, nil
	case CategoryAll, CategoryNotes, CategoryMentions, CategoryAssignments:
		return value, nil
	default:
		return "", fmt.Errorf("activity: invalid category %q", rawInput)
	}
}

// ParseWindow accepts an empty value as WindowAll.
func ParseWindow(rawInput string) (Window, error) {
	switch value := Window(strings.ToLower(strings.TrimSpace(rawInput))); value {
	case "":
		return WindowAll, nil
	case WindowToday, WindowWeek, WindowMonth, WindowAll:
		return value, nil
	default:
		return "", fmt.Errorf("activity: invalid window %q", rawInput)
	}
}

// Includes reports whether the activity type belongs to the category.
func (c Category) Includes(activityType Type) bool {
	switch c {
	case CategoryNotes:
		return activityType == TypeNoteAdded || activityType == TypeNoteEdited || activityType == TypeNoteDeleted
	case CategoryMentions:
		return activityType == TypeMention
	case CategoryAssignments:
		return activityType == TypeAssignment
	default:
		return true
	}
}

// Cutoff returns the earliest creation time kept by the window, relative to now
// in now's location. The zero time means no cutoff.
func (w Window) Cutoff(now time.Time) time.Time {
	switch w {
	case WindowToday:
		year, month, day := now.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	case WindowWeek:
		return now.Add(-7 * 24 * time.Hour)
	case WindowMonth:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

// Filter combines the feed constraints; all of them must hold.
type Filter struct {
	CustomerEmail string
	Category      Category
	Window        Window
}

// Matches reports whether a single activity passes the filter.
func (f Filter) Matches(entry Activity, now time.Time) bool {
	if f.CustomerEmail != "" && entry.CustomerEmail != f.CustomerEmail {
		return false
	}
	if !f.Category.Includes(entry.Type) {
		return false
	}
	if cutoff := f.Window.Cutoff(now); !cutoff.IsZero() && entry.CreatedAt.Before(cutoff) {
		return false
	}
	return true
}

// Apply keeps the matching activities in their original order.
func Apply(log []Activity, filter Filter, now time.Time) []Activity {
	result := make([]Activity, 0, len(log))
	for _, entry := range log {
		if filter.Matches(entry, now) {
			result = append(result, entry)
		}
	}
	return result
}

// Count returns how many activities match without allocating the filtered slice.
func Count(log []Activity, filter Filter, now time.Time) int {
	count := 0
	for _, entry := range log {
		if filter.Matches(entry, now) {
			count++
		}
	}
	return count
}
