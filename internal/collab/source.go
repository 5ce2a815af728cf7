package collab

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/collab/internal/activity"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
)

var errMissingRepositories = errors.New("collab: member and activity repositories required")

// MemberLister lists the persisted roster.
type MemberLister interface {
	ListMembers(ctx context.Context) ([]team.Member, error)
}

// ActivityLister lists persisted activities, newest first.
type ActivityLister interface {
	RecentActivities(ctx context.Context, limit int) ([]activity.Activity, error)
}

// DatabaseSource loads the store from this service's own tables.
type DatabaseSource struct {
	members    MemberLister
	activities ActivityLister
}

// NewDatabaseSource pairs the roster and activity repositories into a Source.
func NewDatabaseSource(members MemberLister, activities ActivityLister) (*DatabaseSource, error) {
	if members == nil || activities == nil {
		return nil, errMissingRepositories
	}
	return &DatabaseSource{members: members, activities: activities}, nil
}

// FetchMembers returns the persisted roster.
func (s *DatabaseSource) FetchMembers(ctx context.Context) ([]team.Member, error) {
	return s.members.ListMembers(ctx)
}

// FetchActivities returns up to limit persisted activities.
func (s *DatabaseSource) FetchActivities(ctx context.Context, limit int) ([]activity.Activity, error) {
	return s.activities.RecentActivities(ctx, limit)
}
