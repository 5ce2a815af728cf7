package collab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/activity"
	"github.com/MarcoPoloResearchLab/collab/internal/realtime"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
	"github.com/MarcoPoloResearchLab/collab/internal/teamapi"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type staticSource struct {
	members       []team.Member
	activities    []activity.Activity
	membersErr    error
	activitiesErr error
	onFetch       func()
}

func (s staticSource) FetchMembers(context.Context) ([]team.Member, error) {
	if s.onFetch != nil {
		s.onFetch()
	}
	return s.members, s.membersErr
}

func (s staticSource) FetchActivities(_ context.Context, limit int) ([]activity.Activity, error) {
	if s.activitiesErr != nil {
		return nil, s.activitiesErr
	}
	if len(s.activities) > limit {
		return s.activities[:limit], nil
	}
	return s.activities, nil
}

type recordingActivities struct {
	mu      sync.Mutex
	entries []activity.Activity
	err     error
}

func (r *recordingActivities) RecordActivity(_ context.Context, entry activity.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return r.err
}

type recordingStatuses struct {
	saved []team.Member
}

func (r *recordingStatuses) SaveStatus(_ context.Context, member team.Member) error {
	r.saved = append(r.saved, member)
	return nil
}

func testRoster() []team.Member {
	return []team.Member{
		{ID: "1", Name: "Sarah Johnson", Role: team.RoleAdmin, Status: team.StatusOnline},
		{ID: "2", Name: "Mike Chen", Role: team.RoleAgent, Status: team.StatusAway},
		{ID: "3", Name: "Emma Davis", Role: team.RoleAgent, Status: team.StatusOnline},
		{ID: "4", Name: "James Wilson", Role: team.RoleManager, Status: team.StatusOffline},
	}
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
}

func loadedStore(t *testing.T, cfg StoreConfig) *Store {
	t.Helper()
	if cfg.Source == nil {
		cfg.Source = staticSource{members: testRoster()}
	}
	store := NewStore(cfg)
	store.Load(context.Background())
	return store
}

func TestAddActivityPrependsInCallOrder(t *testing.T) {
	recorder := &recordingActivities{}
	store := loadedStore(t, StoreConfig{Activities: recorder, Clock: fixedClock()})
	ctx := context.Background()

	for index := 0; index < 5; index++ {
		store.AddActivity(ctx, activity.Draft{
			Type:    activity.TypeNoteAdded,
			UserID:  "1",
			Content: fmt.Sprintf("call-%d", index),
		})
	}

	entries := store.Activities()
	require.Len(t, entries, 5)
	for index, entry := range entries {
		require.Equal(t, fmt.Sprintf("call-%d", 4-index), entry.Content)
	}
	for index := 1; index < len(entries); index++ {
		require.Less(t, entries[index].ID, entries[index-1].ID, "ids must increase with call order within one millisecond")
	}
	require.Len(t, recorder.entries, 5)
}

func TestAddActivityLogsRecorderFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := loadedStore(t, StoreConfig{
		Activities: &recordingActivities{err: errors.New("disk full")},
		Logger:     zap.New(core),
	})

	entry := store.AddActivity(context.Background(), activity.Draft{Type: activity.TypeMention, CustomerEmail: "acme@example.com"})
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.Len(t, store.Activities(), 1)
	require.Equal(t, 1, logs.FilterMessage("activity not persisted").Len())
}

func TestLoadDegradesToEmptyWhenMembersEndpointFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := teamapi.NewClient(teamapi.Config{BaseURL: server.URL})
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	store := NewStore(StoreConfig{Source: client, Logger: zap.New(core)})
	require.NotPanics(t, func() {
		store.Load(context.Background())
	})

	require.Empty(t, store.OnlineMembers())
	require.Empty(t, store.Members())
	require.Empty(t, store.Activities())
	require.Equal(t, 1, logs.FilterMessage("team members unavailable, starting empty").Len())
}

func TestLoadDegradesToEmptyWhenActivitiesFail(t *testing.T) {
	store := NewStore(StoreConfig{Source: staticSource{members: testRoster(), activitiesErr: errors.New("timeout")}})
	store.Load(context.Background())

	require.Empty(t, store.Members())
	require.Empty(t, store.Activities())
}

func TestLoadCapsActivitiesAndKeepsOrder(t *testing.T) {
	entries := make([]activity.Activity, 0, 30)
	for index := 0; index < 30; index++ {
		entries = append(entries, activity.Activity{ID: fmt.Sprintf("a%02d", index)})
	}
	store := NewStore(StoreConfig{Source: staticSource{members: testRoster(), activities: entries}})
	store.Load(context.Background())

	loaded := store.Activities()
	require.Len(t, loaded, defaultActivityLimit)
	require.Equal(t, "a00", loaded[0].ID)
	require.Len(t, store.Members(), 4)
}

func TestLoadAppliesNothingAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewStore(StoreConfig{Source: staticSource{members: testRoster(), onFetch: cancel}})
	store.EnsureMember(team.Member{ID: "9", Name: "Early Bird"})

	store.Load(ctx)

	members := store.Members()
	require.Len(t, members, 1)
	require.Equal(t, "9", members[0].ID)
}

func TestUpdateMemberStatus(t *testing.T) {
	statuses := &recordingStatuses{}
	store := loadedStore(t, StoreConfig{Statuses: statuses, Clock: fixedClock()})
	ctx := context.Background()

	require.False(t, store.UpdateMemberStatus(ctx, "", team.StatusBusy))
	require.False(t, store.UpdateMemberStatus(ctx, "99", team.StatusBusy))
	require.Empty(t, statuses.saved)

	require.True(t, store.UpdateMemberStatus(ctx, "4", team.StatusOnline))
	member, ok := store.Member("4")
	require.True(t, ok)
	require.Equal(t, team.StatusOnline, member.Status)
	require.Equal(t, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), member.LastSeen)

	online := store.OnlineMembers()
	require.Equal(t, []string{"1", "3", "4"}, memberIDs(online))
	require.Len(t, statuses.saved, 1)
}

func TestRosterAccessorsPreserveOrder(t *testing.T) {
	store := loadedStore(t, StoreConfig{})

	require.Equal(t, []string{"1", "2", "3", "4"}, memberIDs(store.Members()))
	require.Equal(t, []string{"2", "3"}, memberIDs(store.MembersByRole(team.RoleAgent)))
	require.Equal(t, []string{"3"}, store.ResolveMentions("ping @Emma Davis re: invoice"))
	require.Empty(t, store.ResolveMentions("ping @Unknown Person"))

	joined, ok := store.EnsureMember(team.Member{ID: "5", Name: "Lisa Park"})
	require.True(t, ok)
	require.Equal(t, "Lisa Park", joined.Name)
	existing, ok := store.EnsureMember(team.Member{ID: "1", Name: "Renamed"})
	require.True(t, ok)
	require.Equal(t, "Sarah Johnson", existing.Name)
	require.Equal(t, []string{"5"}, store.ResolveMentions("hi @lisa park"))

	_, ok = store.EnsureMember(team.Member{})
	require.False(t, ok)
}

func TestSessionActsAsCurrentMember(t *testing.T) {
	store := loadedStore(t, StoreConfig{})
	ctx := context.Background()

	session := store.Session(" 2 ")
	require.Equal(t, "2", session.MemberID())
	current, ok := session.CurrentMember()
	require.True(t, ok)
	require.Equal(t, "Mike Chen", current.Name)

	require.True(t, session.UpdateStatus(ctx, team.StatusBusy))
	member, _ := store.Member("2")
	require.Equal(t, team.StatusBusy, member.Status)

	entry, ok := session.AddActivity(ctx, activity.Draft{Type: activity.TypeNoteEdited, UserID: "1", UserName: "spoofed"})
	require.True(t, ok)
	require.Equal(t, "2", entry.UserID)
	require.Equal(t, "Mike Chen", entry.UserName)

	stranger := store.Session("99")
	_, ok = stranger.AddActivity(ctx, activity.Draft{Type: activity.TypeNoteEdited})
	require.False(t, ok)
	require.False(t, stranger.UpdateStatus(ctx, team.StatusBusy))
}

func TestSubscribeReceivesStoreChanges(t *testing.T) {
	store := loadedStore(t, StoreConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := store.Subscribe(ctx)
	defer cleanup()

	store.UpdateMemberStatus(ctx, "1", team.StatusAway)
	entry := store.AddActivity(ctx, activity.Draft{Type: activity.TypeMention})

	first := <-stream
	require.Equal(t, realtime.EventMemberStatus, first.EventType)
	require.Equal(t, "1", first.MemberID)
	second := <-stream
	require.Equal(t, realtime.EventActivityAdded, second.EventType)
	require.Equal(t, entry.ID, second.ActivityID)
}

func TestDatabaseSourceRequiresRepositories(t *testing.T) {
	_, err := NewDatabaseSource(nil, nil)
	require.ErrorIs(t, err, errMissingRepositories)
}

func memberIDs(members []team.Member) []string {
	ids := make([]string, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.ID)
	}
	return ids
}
