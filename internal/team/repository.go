package team

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidIdentity indicates the claims did not contain a usable member id.
var ErrInvalidIdentity = errors.New("team: invalid identity")

// MemberRecord is the persisted roster row.
type MemberRecord struct {
	MemberID   string    `gorm:"column:member_id;primaryKey;size:190;not null"`
	Position   int64     `gorm:"column:position;not null;index"`
	Name       string    `gorm:"column:name;size:320;not null"`
	Email      string    `gorm:"column:email;size:320"`
	AvatarURL  string    `gorm:"column:avatar_url;size:512"`
	Role       string    `gorm:"column:role;size:32;not null;default:'agent'"`
	Status     string    `gorm:"column:status;size:32;not null;default:'offline'"`
	LastSeenAt time.Time `gorm:"column:last_seen_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing the roster.
func (MemberRecord) TableName() string {
	return "team_members"
}

func (r MemberRecord) toMember() Member {
	role, err := ParseRole(r.Role)
	if err != nil {
		role = RoleAgent
	}
	status, err := ParseStatus(r.Status)
	if err != nil {
		status = StatusOffline
	}
	return Member{
		ID:        r.MemberID,
		Name:      r.Name,
		Email:     r.Email,
		AvatarURL: r.AvatarURL,
		Role:      role,
		Status:    status,
		LastSeen:  r.LastSeenAt,
	}
}

// RepositoryConfig describes the dependencies of the roster repository.
type RepositoryConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Repository persists roster rows and resolves session identities into members.
type Repository struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	known  sync.Map
}

// NewRepository constructs the roster repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("team: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// ListMembers returns the roster in the order members joined.
func (r *Repository) ListMembers(ctx context.Context) ([]Member, error) {
	var records []MemberRecord
	if err := r.db.WithContext(ctx).Order("position ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(records))
	for _, record := range records {
		members = append(members, record.toMember())
	}
	return members, nil
}

// SaveStatus persists a member's presence status.
func (r *Repository) SaveStatus(ctx context.Context, member Member) error {
	return r.db.WithContext(ctx).
		Model(&MemberRecord{}).
		Where("member_id = ?", member.ID).
		Updates(map[string]interface{}{
			"status":       string(member.Status),
			"last_seen_at": member.LastSeen,
		}).Error
}

// ResolveMember maps session claims onto a roster member, creating the row the
// first time a member signs in and refreshing profile fields afterwards.
func (r *Repository) ResolveMember(ctx context.Context, claims auth.SessionClaims) (Member, error) {
	memberID := normalize(claims.MemberID)
	if memberID == "" {
		memberID = normalize(claims.Subject)
	}
	if memberID == "" {
		return Member{}, ErrInvalidIdentity
	}

	if cached, ok := r.known.Load(memberID); ok {
		if member, ok := cached.(Member); ok && profileCurrent(member, claims) {
			return member, nil
		}
	}

	var record MemberRecord
	err := r.db.WithContext(ctx).Where("member_id = ?", memberID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		position, err := r.nextPosition(ctx)
		if err != nil {
			return Member{}, err
		}
		record = MemberRecord{
			MemberID:   memberID,
			Position:   position,
			Name:       displayName(claims),
			Email:      normalize(claims.MemberEmail),
			AvatarURL:  normalize(claims.MemberAvatarURL),
			Role:       string(roleFromClaims(claims.MemberRoles)),
			Status:     string(StatusOnline),
			LastSeenAt: r.now(),
		}
		if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
			return Member{}, err
		}
	} else if err != nil {
		return Member{}, err
	} else {
		updates := map[string]interface{}{}
		if email := normalize(claims.MemberEmail); email != "" && email != record.Email {
			updates["email"] = email
			record.Email = email
		}
		if name := normalize(claims.MemberName); name != "" && name != record.Name {
			updates["name"] = name
			record.Name = name
		}
		if avatar := normalize(claims.MemberAvatarURL); avatar != "" && avatar != record.AvatarURL {
			updates["avatar_url"] = avatar
			record.AvatarURL = avatar
		}
		if len(updates) > 0 {
			err := r.db.WithContext(ctx).
				Model(&MemberRecord{}).
				Where("member_id = ?", memberID).
				Updates(updates).
				Error
			if err != nil {
				r.logger.Error("member profile refresh failed",
					zap.String("member_id", memberID),
					zap.Error(err))
				return Member{}, fmt.Errorf("team: refresh member %s: %w", memberID, err)
			}
		}
	}

	member := record.toMember()
	r.known.Store(memberID, member)
	return member, nil
}

// Seed inserts members that are not yet present, keeping the given order.
func (r *Repository) Seed(ctx context.Context, members []Member) (int, error) {
	inserted := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, member := range members {
			if normalize(member.ID) == "" {
				continue
			}
			var count int64
			if err := tx.Model(&MemberRecord{}).Where("member_id = ?", member.ID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			var maxPosition int64
			if err := tx.Model(&MemberRecord{}).Select("COALESCE(MAX(position), 0)").Scan(&maxPosition).Error; err != nil {
				return err
			}
			status := member.Status
			if status == "" {
				status = StatusOffline
			}
			role := member.Role
			if role == "" {
				role = RoleAgent
			}
			record := MemberRecord{
				MemberID:   member.ID,
				Position:   maxPosition + 1,
				Name:       normalize(member.Name),
				Email:      normalize(member.Email),
				AvatarURL:  normalize(member.AvatarURL),
				Role:       string(role),
				Status:     string(status),
				LastSeenAt: member.LastSeen,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	return inserted, err
}

func (r *Repository) nextPosition(ctx context.Context) (int64, error) {
	var maxPosition int64
	if err := r.db.WithContext(ctx).Model(&MemberRecord{}).Select("COALESCE(MAX(position), 0)").Scan(&maxPosition).Error; err != nil {
		return 0, err
	}
	return maxPosition + 1, nil
}

// profileCurrent reports whether every profile field the claims carry already
// matches the member.
func profileCurrent(member Member, claims auth.SessionClaims) bool {
	if name := normalize(claims.MemberName); name != "" && name != member.Name {
		return false
	}
	if email := normalize(claims.MemberEmail); email != "" && email != member.Email {
		return false
	}
	if avatar := normalize(claims.MemberAvatarURL); avatar != "" && avatar != member.AvatarURL {
		return false
	}
	return true
}

func displayName(claims auth.SessionClaims) string {
	if name := normalize(claims.MemberName); name != "" {
		return name
	}
	if email := normalize(claims.MemberEmail); email != "" {
		return email
	}
	return normalize(claims.MemberID)
}

func roleFromClaims(roles []string) Role {
	for _, raw := range roles {
		if role, err := ParseRole(raw); err == nil {
			return role
		}
	}
	return RoleAgent
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
