package activity

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const defaultRecentLimit = 20

var errMissingDatabase = errors.New("activity: database handle is required")

// Record is the persisted form of an Activity.
type Record struct {
	ActivityID    string                 `gorm:"column:activity_id;primaryKey;size:64;not null"`
	Type          string                 `gorm:"column:type;size:32;not null;index"`
	UserID        string                 `gorm:"column:user_id;size:190;not null"`
	UserName      string                 `gorm:"column:user_name;size:320;not null;default:''"`
	CustomerEmail string                 `gorm:"column:customer_email;size:320;not null;default:'';index:idx_activities_customer_created,priority:1"`
	Content       string                 `gorm:"column:content;type:text;not null"`
	Metadata      map[string]interface{} `gorm:"column:metadata;type:text;serializer:json"`
	CreatedAt     time.Time              `gorm:"column:created_at;not null;index:idx_activities_customer_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "collaboration_activities"
}

func recordFromActivity(entry Activity) Record {
	return Record{
		ActivityID:    entry.ID,
		Type:          string(entry.Type),
		UserID:        entry.UserID,
		UserName:      entry.UserName,
		CustomerEmail: entry.CustomerEmail,
		Content:       entry.Content,
		Metadata:      entry.Metadata,
		CreatedAt:     entry.CreatedAt.UTC(),
	}
}

func (r Record) toActivity() Activity {
	return Activity{
		ID:            r.ActivityID,
		Type:          Type(r.Type),
		UserID:        r.UserID,
		UserName:      r.UserName,
		CustomerEmail: r.CustomerEmail,
		Content:       r.Content,
		Metadata:      r.Metadata,
		CreatedAt:     r.CreatedAt,
	}
}

// Repository persists activities.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs the activity repository.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &Repository{db: db}, nil
}

// RecordActivity inserts a single activity.
func (r *Repository) RecordActivity(ctx context.Context, entry Activity) error {
	record := recordFromActivity(entry)
	return r.db.WithContext(ctx).Create(&record).Error
}

// RecentActivities returns up to limit activities, newest first.
func (r *Repository) RecentActivities(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	var records []Record
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("activity_id DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	activities := make([]Activity, 0, len(records))
	for _, record := range records {
		activities = append(activities, record.toActivity())
	}
	return activities, nil
}
