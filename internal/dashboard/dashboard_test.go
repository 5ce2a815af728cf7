package dashboard

import (
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/activity"
	"github.com/MarcoPoloResearchLab/collab/internal/notes"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	members    []team.Member
	activities []activity.Activity
}

func (s snapshot) Members() []team.Member          { return s.members }
func (s snapshot) Activities() []activity.Activity { return s.activities }

var dashboardNow = time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC)

func fixtureSnapshot() snapshot {
	return snapshot{
		members: []team.Member{
			{ID: "1", Name: "Sarah Johnson", Status: team.StatusOnline},
			{ID: "2", Name: "Mike Chen", Status: team.StatusAway},
			{ID: "3", Name: "Emma Davis", Status: team.StatusOnline},
			{ID: "4", Name: "James Wilson", Status: team.StatusOnline},
			{ID: "5", Name: "Lisa Park", Status: team.StatusOnline},
		},
		activities: []activity.Activity{
			{ID: "a1", Type: activity.TypeNoteAdded, CustomerEmail: "acme@example.com", CreatedAt: dashboardNow.Add(-30 * time.Second)},
			{ID: "a2", Type: activity.TypeMention, CustomerEmail: "acme@example.com", CreatedAt: dashboardNow.Add(-2 * time.Hour)},
			{ID: "a3", Type: activity.TypeAssignment, CustomerEmail: "globex@example.com", CreatedAt: dashboardNow.Add(-26 * time.Hour)},
			{ID: "a4", Type: activity.TypeNoteAdded, CustomerEmail: "acme@example.com", CreatedAt: dashboardNow.Add(-3 * 24 * time.Hour)},
			{ID: "a5", Type: activity.TypeNoteAdded, CustomerEmail: "acme@example.com", CreatedAt: dashboardNow.Add(-10 * 24 * time.Hour)},
		},
	}
}

func TestBuildOverviewSummarizesWorkspace(t *testing.T) {
	board := []notes.Note{
		{ID: "n1", Status: notes.StatusActive, IsPinned: true},
		{ID: "n2", Status: notes.StatusActive},
		{ID: "n3", Status: notes.StatusResolved, IsPinned: true},
	}
	view := Build(fixtureSnapshot(), Options{Notes: board, Now: dashboardNow})

	require.Equal(t, TabOverview, view.Tab)
	require.Equal(t, Summary{
		OnlineMembers:       4,
		TotalMembers:        5,
		ActivitiesToday:     2,
		NotesThisWeek:       2,
		MentionsThisWeek:    1,
		AssignmentsThisWeek: 1,
		OpenNotes:           2,
		PinnedNotes:         1,
	}, view.Summary)
	require.Len(t, view.Recent, 5)
	require.Equal(t, "just now", view.Recent[0].TimeAgo)
	require.Equal(t, "2h ago", view.Recent[1].TimeAgo)
	require.Equal(t, "Mar 5, 2024", view.Recent[4].TimeAgo)
	require.True(t, view.Presence.Compact)
	require.Equal(t, 1, view.Presence.Overflow)
}

func TestBuildScopesToCustomer(t *testing.T) {
	view := Build(fixtureSnapshot(), Options{Tab: TabActivity, CustomerEmail: "globex@example.com", Now: dashboardNow})

	require.Len(t, view.Recent, 1)
	require.Equal(t, "a3", view.Recent[0].ID)
	require.Equal(t, 0, view.Summary.ActivitiesToday)
	require.Equal(t, 1, view.Summary.AssignmentsThisWeek)
}

func TestBuildTeamTabListsEveryone(t *testing.T) {
	view := Build(fixtureSnapshot(), Options{Tab: TabTeam, Now: dashboardNow})

	require.False(t, view.Presence.Compact)
	require.Len(t, view.Presence.Members, 5)
	require.Empty(t, view.Recent)
}

func TestBuildNotesTabHidesResolvedAndPrivate(t *testing.T) {
	board := []notes.Note{
		{ID: "n1", Status: notes.StatusActive},
		{ID: "n2", Status: notes.StatusArchived},
		{ID: "n3", Status: notes.StatusActive, IsPrivate: true, Author: notes.Author{ID: "2"}},
	}
	view := Build(fixtureSnapshot(), Options{Tab: TabNotes, ViewerID: "1", Notes: board, Now: dashboardNow})

	require.Len(t, view.Notes, 1)
	require.Equal(t, "n1", view.Notes[0].ID)
}

func TestParseTab(t *testing.T) {
	tab, err := ParseTab("")
	require.NoError(t, err)
	require.Equal(t, TabOverview, tab)

	tab, err = ParseTab("Team")
	require.NoError(t, err)
	require.Equal(t, TabTeam, tab)

	_, err = ParseTab("billing")
	require.Error(t, err)
}
