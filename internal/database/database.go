package database

import (
	"os"
	"path/filepath"

	"github.com/openvbs/arena/internal/database/models"
	"go.uber.org/zap"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Init(dsn string) (*gorm.DB, error) {
	if _, err := os.Stat(dsn); os.IsNotExist(err) {
		zap.S().Infof("database file not found at '%s', creating directory for it.", dsn)
		dbDir := filepath.Dir(dsn)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto migrate schema
	err = db.AutoMigrate(
		&models.User{},
		&models.Run{},
		&models.Task{},
		&models.Submission{},
		&models.AnswerSet{},
		&models.Answer{},
		&models.ScoreTick{},
		&models.AuditRecord{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// ArchiveInterruptedRuns marks runs that were still executing when the
// process died as terminated. Task timers and ready latches live only in
// memory, so an interrupted run cannot be resumed.
func ArchiveInterruptedRuns(db *gorm.DB) error {
	result := db.Model(&models.Run{}).
		Where("status NOT IN ?", []models.RunStatus{models.RunCreated, models.RunTerminated}).
		Update("status", models.RunTerminated)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		zap.S().Warnf("archived %d interrupted runs", result.RowsAffected)
	}
	return nil
}
