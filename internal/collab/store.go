package collab

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/activity"
	"github.com/MarcoPoloResearchLab/collab/internal/realtime"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
	"go.uber.org/zap"
)

const defaultActivityLimit = 20

// Source provides the roster and the most recent activities on load.
type Source interface {
	FetchMembers(ctx context.Context) ([]team.Member, error)
	FetchActivities(ctx context.Context, limit int) ([]activity.Activity, error)
}

// ActivityRecorder persists appended activities.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, entry activity.Activity) error
}

// StatusRecorder persists member presence changes.
type StatusRecorder interface {
	SaveStatus(ctx context.Context, member team.Member) error
}

// ActivityObserver is told about every appended activity.
type ActivityObserver interface {
	ObserveActivity(entry activity.Activity)
}

// StoreConfig describes the dependencies of the collaboration store.
type StoreConfig struct {
	Source        Source
	Activities    ActivityRecorder
	Statuses      StatusRecorder
	Broker        realtime.Broker
	Observer      ActivityObserver
	Clock         func() time.Time
	IDs           activity.IDProvider
	Logger        *zap.Logger
	ActivityLimit int
}

// Store is the shared state of one workspace: its roster and its activity log.
// The log is prepend-only. Members are never removed.
type Store struct {
	source        Source
	activities    ActivityRecorder
	statuses      StatusRecorder
	broker        realtime.Broker
	observer      ActivityObserver
	clock         func() time.Time
	ids           activity.IDProvider
	logger        *zap.Logger
	activityLimit int

	mu        sync.RWMutex
	directory *team.Directory
	log       []activity.Activity
}

// NewStore constructs an empty store. Call Load to populate it.
func NewStore(cfg StoreConfig) *Store {
	broker := cfg.Broker
	if broker == nil {
		broker = realtime.NewDispatcher()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := cfg.IDs
	if ids == nil {
		ids = activity.NewULIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.ActivityLimit
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	return &Store{
		source:        cfg.Source,
		activities:    cfg.Activities,
		statuses:      cfg.Statuses,
		broker:        broker,
		observer:      cfg.Observer,
		clock:         clock,
		ids:           ids,
		logger:        logger,
		activityLimit: limit,
		directory:     team.NewDirectory(nil),
		log:           []activity.Activity{},
	}
}

// Load replaces the roster and log with what the source returns. Any fetch
// failure leaves both empty. Nothing is applied once ctx is done.
func (s *Store) Load(ctx context.Context) {
	members, entries := s.fetch(ctx)
	if ctx.Err() != nil {
		s.logger.Info("collaboration load abandoned", zap.Error(ctx.Err()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.directory.Replace(members)
	s.log = entries
	s.logger.Info("collaboration store loaded",
		zap.Int("members", s.directory.Len()),
		zap.Int("activities", len(s.log)))
}

func (s *Store) fetch(ctx context.Context) ([]team.Member, []activity.Activity) {
	if s.source == nil {
		return nil, []activity.Activity{}
	}
	members, err := s.source.FetchMembers(ctx)
	if err != nil {
		s.logger.Warn("team members unavailable, starting empty", zap.Error(err))
		return nil, []activity.Activity{}
	}
	entries, err := s.source.FetchActivities(ctx, s.activityLimit)
	if err != nil {
		s.logger.Warn("team activities unavailable, starting empty", zap.Error(err))
		return nil, []activity.Activity{}
	}
	if len(entries) > s.activityLimit {
		entries = entries[:s.activityLimit]
	}
	return members, append([]activity.Activity{}, entries...)
}

// AddActivity stamps the draft with an id and the current time and prepends it.
func (s *Store) AddActivity(ctx context.Context, draft activity.Draft) activity.Activity {
	s.mu.Lock()
	createdAt := s.clock()
	id, err := s.ids.NewID(createdAt)
	if err != nil {
		s.logger.Error("activity id generation failed", zap.Error(err))
		id = createdAt.UTC().Format(time.RFC3339Nano)
	}
	entry := draft.Stamp(id, createdAt)
	s.log = append([]activity.Activity{entry}, s.log...)
	s.mu.Unlock()

	if s.activities != nil {
		if err := s.activities.RecordActivity(ctx, entry); err != nil {
			s.logger.Warn("activity not persisted",
				zap.String("activity_id", entry.ID),
				zap.String("type", string(entry.Type)),
				zap.Error(err))
		}
	}
	if s.observer != nil {
		s.observer.ObserveActivity(entry)
	}
	s.broker.Publish(realtime.Message{
		Topic:         realtime.TopicTeam,
		EventType:     realtime.EventActivityAdded,
		CustomerEmail: entry.CustomerEmail,
		ActivityID:    entry.ID,
		MemberID:      entry.UserID,
		Timestamp:     entry.CreatedAt,
	})
	return entry
}

// UpdateMemberStatus changes the current member's own status. It reports false
// when the id is empty or not on the roster.
func (s *Store) UpdateMemberStatus(ctx context.Context, currentMemberID string, status team.Status) bool {
	memberID := strings.TrimSpace(currentMemberID)
	if memberID == "" {
		return false
	}
	s.mu.Lock()
	member, ok := s.directory.SetStatus(memberID, status, s.clock())
	s.mu.Unlock()
	if !ok {
		return false
	}

	if s.statuses != nil {
		if err := s.statuses.SaveStatus(ctx, member); err != nil {
			s.logger.Warn("member status not persisted",
				zap.String("member_id", member.ID),
				zap.Error(err))
		}
	}
	s.broker.Publish(realtime.Message{
		Topic:     realtime.TopicTeam,
		EventType: realtime.EventMemberStatus,
		MemberID:  member.ID,
		Status:    string(member.Status),
		Timestamp: member.LastSeen,
	})
	return true
}

// EnsureMember appends an authenticated member missing from the roster and
// returns the roster entry.
func (s *Store) EnsureMember(member team.Member) (team.Member, bool) {
	if strings.TrimSpace(member.ID) == "" {
		return team.Member{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.directory.Get(member.ID); ok {
		return existing, true
	}
	s.directory.Add(member)
	s.logger.Info("member joined roster", zap.String("member_id", member.ID))
	return member, true
}

// Member returns the roster entry for memberID.
func (s *Store) Member(memberID string) (team.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.directory.Get(strings.TrimSpace(memberID))
}

// CurrentMember is Member under the name the session layer uses.
func (s *Store) CurrentMember(memberID string) (team.Member, bool) {
	return s.Member(memberID)
}

// Members returns the roster in insertion order.
func (s *Store) Members() []team.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.directory.All()
}

// OnlineMembers returns the members whose status is online.
func (s *Store) OnlineMembers() []team.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.directory.Online()
}

// MembersByRole returns the members holding role.
func (s *Store) MembersByRole(role team.Role) []team.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.directory.ByRole(role)
}

// Activities returns the log, newest first.
func (s *Store) Activities() []activity.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]activity.Activity{}, s.log...)
}

// ResolveMentions maps "@First Last" tokens onto roster ids.
func (s *Store) ResolveMentions(content string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.directory.ResolveMentions(content)
}

// Subscribe streams workspace change notifications until ctx ends.
func (s *Store) Subscribe(ctx context.Context) (<-chan realtime.Message, func()) {
	return s.broker.Subscribe(ctx, realtime.TopicTeam)
}

// Session binds the store to a current member.
func (s *Store) Session(memberID string) *Session {
	return &Session{store: s, memberID: strings.TrimSpace(memberID)}
}

// Session is the store as seen by one member.
type Session struct {
	store    *Store
	memberID string
}

// MemberID returns the id the session is bound to.
func (s *Session) MemberID() string {
	return s.memberID
}

// CurrentMember returns the session's roster entry.
func (s *Session) CurrentMember() (team.Member, bool) {
	return s.store.Member(s.memberID)
}

// UpdateStatus changes the session member's own status.
func (s *Session) UpdateStatus(ctx context.Context, status team.Status) bool {
	return s.store.UpdateMemberStatus(ctx, s.memberID, status)
}

// AddActivity records an activity attributed to the session member. It reports
// false when the member is not on the roster.
func (s *Session) AddActivity(ctx context.Context, draft activity.Draft) (activity.Activity, bool) {
	member, ok := s.CurrentMember()
	if !ok {
		return activity.Activity{}, false
	}
	draft.UserID = member.ID
	draft.UserName = member.Name
	return s.store.AddActivity(ctx, draft), true
}
