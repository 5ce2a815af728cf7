package notes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase      = errors.New("database handle is required")
	errMissingCustomerEmail = errors.New("customer email is required")
	errMissingNoteID        = errors.New("note identifier is required")
	noOpLogger              = zap.NewNop()
)

// ServiceError carries a stable "operation.reason" code alongside its cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opRepositoryNew = "notes.repository.new"
	opSaveNote      = "notes.save_note"
	opDeleteNote    = "notes.delete_note"
	opListNotes     = "notes.list_notes"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// NoteRecord is the persisted form of a note. Nested collections are stored as JSON.
type NoteRecord struct {
	NoteID         string     `gorm:"column:note_id;primaryKey;size:190;not null"`
	CustomerEmail  string     `gorm:"column:customer_email;size:320;not null;index:idx_notes_customer_created,priority:1"`
	Content        string     `gorm:"column:content;type:text;not null"`
	AuthorID       string     `gorm:"column:author_id;size:190;not null"`
	AuthorName     string     `gorm:"column:author_name;size:320"`
	AuthorAvatar   string     `gorm:"column:author_avatar;size:512"`
	NoteType       string     `gorm:"column:note_type;size:32;not null"`
	Priority       string     `gorm:"column:priority;size:32;not null"`
	IsPrivate      bool       `gorm:"column:is_private;not null;default:false"`
	IsPinned       bool       `gorm:"column:is_pinned;not null;default:false"`
	Mentions       []string   `gorm:"column:mentions;serializer:json"`
	Tags           []string   `gorm:"column:tags;serializer:json"`
	AssignedTo     string     `gorm:"column:assigned_to;size:190"`
	AssignedToName string     `gorm:"column:assigned_to_name;size:320"`
	Status         string     `gorm:"column:status;size:32;not null"`
	Reactions      []Reaction `gorm:"column:reactions;serializer:json"`
	Replies        []Reply    `gorm:"column:replies;serializer:json"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null;index:idx_notes_customer_created,priority:2"`
	UpdatedAt      *time.Time `gorm:"column:updated_at"`
}

// TableName exposes the table backing customer notes.
func (NoteRecord) TableName() string {
	return "customer_notes"
}

func recordFromNote(note Note) NoteRecord {
	clone := note.Clone()
	return NoteRecord{
		NoteID:         clone.ID,
		CustomerEmail:  clone.CustomerEmail,
		Content:        clone.Content,
		AuthorID:       clone.Author.ID,
		AuthorName:     clone.Author.Name,
		AuthorAvatar:   clone.Author.AvatarURL,
		NoteType:       string(clone.Type),
		Priority:       string(clone.Priority),
		IsPrivate:      clone.IsPrivate,
		IsPinned:       clone.IsPinned,
		Mentions:       clone.Mentions,
		Tags:           clone.Tags,
		AssignedTo:     clone.AssignedTo,
		AssignedToName: clone.AssignedToName,
		Status:         string(clone.Status),
		Reactions:      clone.Reactions,
		Replies:        clone.Replies,
		CreatedAt:      clone.CreatedAt,
		UpdatedAt:      clone.UpdatedAt,
	}
}

func (r NoteRecord) toNote() Note {
	noteType, err := ParseNoteType(r.NoteType)
	if err != nil {
		noteType = NoteTypeGeneral
	}
	priority, err := ParsePriority(r.Priority)
	if err != nil {
		priority = PriorityMedium
	}
	status, err := ParseStatus(r.Status)
	if err != nil {
		status = StatusActive
	}
	note := Note{
		ID:             r.NoteID,
		CustomerEmail:  r.CustomerEmail,
		Content:        r.Content,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		Author:         Author{ID: r.AuthorID, Name: r.AuthorName, AvatarURL: r.AuthorAvatar},
		Type:           noteType,
		Priority:       priority,
		IsPrivate:      r.IsPrivate,
		IsPinned:       r.IsPinned,
		Mentions:       r.Mentions,
		Tags:           r.Tags,
		AssignedTo:     r.AssignedTo,
		AssignedToName: r.AssignedToName,
		Status:         status,
		Reactions:      r.Reactions,
		Replies:        r.Replies,
	}
	return note.Clone()
}

// RepositoryConfig describes the dependencies of the note repository.
type RepositoryConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Repository persists notes per customer.
type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRepository validates the configuration and constructs a repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opRepositoryNew, "missing_database", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Repository{db: cfg.Database, logger: logger}, nil
}

// SaveNote inserts or replaces the note row.
func (r *Repository) SaveNote(ctx context.Context, note Note) error {
	if note.CustomerEmail == "" {
		r.logError(opSaveNote, "missing_customer_email", errMissingCustomerEmail, zap.String("note_id", note.ID))
		return newServiceError(opSaveNote, "missing_customer_email", errMissingCustomerEmail)
	}
	if note.ID == "" {
		r.logError(opSaveNote, "missing_note_id", errMissingNoteID, zap.String("customer_email", note.CustomerEmail))
		return newServiceError(opSaveNote, "missing_note_id", errMissingNoteID)
	}

	record := recordFromNote(note)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "note_id"}},
			UpdateAll: true,
		}).
		Create(&record).Error
	if err != nil {
		r.logError(opSaveNote, "upsert_failed", err,
			zap.String("customer_email", note.CustomerEmail),
			zap.String("note_id", note.ID))
		return newServiceError(opSaveNote, "upsert_failed", err)
	}
	return nil
}

// DeleteNote removes the note row scoped to the customer.
func (r *Repository) DeleteNote(ctx context.Context, customerEmail string, noteID string) error {
	if customerEmail == "" {
		r.logError(opDeleteNote, "missing_customer_email", errMissingCustomerEmail, zap.String("note_id", noteID))
		return newServiceError(opDeleteNote, "missing_customer_email", errMissingCustomerEmail)
	}
	if noteID == "" {
		r.logError(opDeleteNote, "missing_note_id", errMissingNoteID, zap.String("customer_email", customerEmail))
		return newServiceError(opDeleteNote, "missing_note_id", errMissingNoteID)
	}
	err := r.db.WithContext(ctx).
		Where("customer_email = ? AND note_id = ?", customerEmail, noteID).
		Delete(&NoteRecord{}).Error
	if err != nil {
		r.logError(opDeleteNote, "delete_failed", err,
			zap.String("customer_email", customerEmail),
			zap.String("note_id", noteID))
		return newServiceError(opDeleteNote, "delete_failed", err)
	}
	return nil
}

// ListNotes returns the customer's notes newest first.
func (r *Repository) ListNotes(ctx context.Context, customerEmail string) ([]Note, error) {
	if customerEmail == "" {
		r.logError(opListNotes, "missing_customer_email", errMissingCustomerEmail)
		return nil, newServiceError(opListNotes, "missing_customer_email", errMissingCustomerEmail)
	}

	var records []NoteRecord
	if err := r.db.WithContext(ctx).
		Where("customer_email = ?", customerEmail).
		Order("created_at DESC").
		Order("note_id DESC").
		Find(&records).Error; err != nil {
		r.logError(opListNotes, "query_failed", err, zap.String("customer_email", customerEmail))
		return nil, newServiceError(opListNotes, "query_failed", err)
	}

	notes := make([]Note, 0, len(records))
	for _, record := range records {
		notes = append(notes, record.toNote())
	}
	return notes, nil
}

func (r *Repository) loggerOrDefault() *zap.Logger {
	if r == nil || r.logger == nil {
		return noOpLogger
	}
	return r.logger
}

func (r *Repository) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	r.loggerOrDefault().Error("notes repository error", attrs...)
}
