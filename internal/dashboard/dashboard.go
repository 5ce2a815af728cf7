// Package dashboard assembles the collaboration dashboard read model.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/activity"
	"github.com/MarcoPoloResearchLab/collab/internal/notes"
	"github.com/MarcoPoloResearchLab/collab/internal/presence"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
)

// Tab selects the dashboard section.
type Tab string

const (
	TabOverview Tab = "overview"
	TabActivity Tab = "activity"
	TabTeam     Tab = "team"
	TabNotes    Tab = "notes"
)

const (
	overviewRecentLimit = 5
	activityRecentLimit = 50
)

// Tabs lists the sections in display order.
var Tabs = []Tab{TabOverview, TabActivity, TabTeam, TabNotes}

// ParseTab accepts an empty value as the overview.
func ParseTab(rawInput string) (Tab, error) {
	switch value := Tab(strings.ToLower(strings.TrimSpace(rawInput))); value {
	case "":
		return TabOverview, nil
	case TabOverview, TabActivity, TabTeam, TabNotes:
		return value, nil
	default:
		return "", fmt.Errorf("dashboard: invalid tab %q", rawInput)
	}
}

// Source is the store snapshot the dashboard reads.
type Source interface {
	Members() []team.Member
	Activities() []activity.Activity
}

// Options scopes the dashboard. Notes are the customer's board when a
// customer is selected.
type Options struct {
	Tab           Tab
	CustomerEmail string
	ViewerID      string
	Notes         []notes.Note
	Now           time.Time
}

// Summary is the row of stat tiles.
type Summary struct {
	OnlineMembers       int `json:"onlineMembers"`
	TotalMembers        int `json:"totalMembers"`
	ActivitiesToday     int `json:"activitiesToday"`
	NotesThisWeek       int `json:"notesThisWeek"`
	MentionsThisWeek    int `json:"mentionsThisWeek"`
	AssignmentsThisWeek int `json:"assignmentsThisWeek"`
	OpenNotes           int `json:"openNotes"`
	PinnedNotes         int `json:"pinnedNotes"`
}

// FeedEntry is an activity with its relative time rendered.
type FeedEntry struct {
	activity.Activity
	TimeAgo string `json:"timeAgo"`
}

// Dashboard is the assembled read model.
type Dashboard struct {
	Tab           Tab           `json:"tab"`
	Tabs          []Tab         `json:"tabs"`
	CustomerEmail string        `json:"customerEmail,omitempty"`
	Summary       Summary       `json:"summary"`
	Recent        []FeedEntry   `json:"recent"`
	Presence      presence.View `json:"presence"`
	Notes         []notes.Note  `json:"notes,omitempty"`
	GeneratedAt   time.Time     `json:"generatedAt"`
}

// Feed filters the log and renders relative times. A positive limit caps the result.
func Feed(log []activity.Activity, filter activity.Filter, now time.Time, limit int) []FeedEntry {
	matched := activity.Apply(log, filter, now)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	result := make([]FeedEntry, 0, len(matched))
	for _, entry := range matched {
		result = append(result, FeedEntry{Activity: entry, TimeAgo: activity.FormatTimeAgo(entry.CreatedAt, now)})
	}
	return result
}

// Build assembles the dashboard for the selected tab.
func Build(source Source, opts Options) Dashboard {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	tab := opts.Tab
	if tab == "" {
		tab = TabOverview
	}
	members := source.Members()
	log := source.Activities()

	dashboard := Dashboard{
		Tab:           tab,
		Tabs:          append([]Tab{}, Tabs...),
		CustomerEmail: opts.CustomerEmail,
		Summary:       summarize(members, log, opts, now),
		Recent:        []FeedEntry{},
		GeneratedAt:   now,
	}

	scope := activity.Filter{CustomerEmail: opts.CustomerEmail}
	switch tab {
	case TabOverview:
		dashboard.Recent = Feed(log, scope, now, overviewRecentLimit)
		dashboard.Presence = presence.Project(members, presence.Options{Compact: true})
	case TabActivity:
		dashboard.Recent = Feed(log, scope, now, activityRecentLimit)
		dashboard.Presence = presence.Project(members, presence.Options{Compact: true})
	case TabTeam:
		dashboard.Presence = presence.Project(members, presence.Options{})
	case TabNotes:
		dashboard.Presence = presence.Project(members, presence.Options{Compact: true})
		dashboard.Notes = notes.ApplyFilter(opts.Notes, opts.ViewerID, notes.Filter{Mode: notes.FilterAll})
	}
	return dashboard
}

func summarize(members []team.Member, log []activity.Activity, opts Options, now time.Time) Summary {
	summary := Summary{TotalMembers: len(members)}
	for _, member := range members {
		if member.Status == team.StatusOnline {
			summary.OnlineMembers++
		}
	}

	today := activity.Filter{CustomerEmail: opts.CustomerEmail, Window: activity.WindowToday}
	summary.ActivitiesToday = activity.Count(log, today, now)

	week := activity.Filter{CustomerEmail: opts.CustomerEmail, Window: activity.WindowWeek}
	for _, entry := range activity.Apply(log, week, now) {
		switch entry.Type {
		case activity.TypeNoteAdded:
			summary.NotesThisWeek++
		case activity.TypeMention:
			summary.MentionsThisWeek++
		case activity.TypeAssignment:
			summary.AssignmentsThisWeek++
		}
	}

	for _, note := range notes.ApplyFilter(opts.Notes, opts.ViewerID, notes.Filter{Mode: notes.FilterAll}) {
		summary.OpenNotes++
		if note.IsPinned {
			summary.PinnedNotes++
		}
	}
	return summary
}
