package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/notes"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationNormalizeNoteCustomerEmails = "2024-03-12_normalize_note_customer_emails"
	migrationBackfillMemberStatus        = "2024-03-20_backfill_member_status"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeNoteCustomerEmails, apply: normalizeNoteCustomerEmails},
		{name: migrationBackfillMemberStatus, apply: backfillMemberStatus},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Boards are keyed by the lower-cased, trimmed customer email.
func normalizeNoteCustomerEmails(db *gorm.DB) error {
	return db.Model(&notes.NoteRecord{}).
		Where("customer_email <> LOWER(TRIM(customer_email))").
		Update("customer_email", gorm.Expr("LOWER(TRIM(customer_email))")).Error
}

func backfillMemberStatus(db *gorm.DB) error {
	return db.Model(&team.MemberRecord{}).
		Where("status = ? OR status IS NULL", "").
		Update("status", string(team.StatusOffline)).Error
}
