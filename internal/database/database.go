// Package database owns connecting to MySQL and running the schema
// migration for every model this repo persists. Grounded on the teacher's
// internal/database/database.go (gorm logger wired to logrus, connection
// pool tuning, AutoMigrate), generalized from the forwarding schema to the
// schedule/execution/processed-email/template schema.
package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smart-mail-relay-go/internal/config"
	"smart-mail-relay-go/internal/model"
)

// Connect opens the MySQL connection described by cfg, tunes the pool, and
// runs AutoMigrate for every persisted model.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("database: connecting: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: getting underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("database: migrating: %w", err)
	}

	logrus.Info("database: connected and migrated")
	return db, nil
}

func migrate(db *gorm.DB) error {
	logrus.Info("database: running migrations")
	return db.AutoMigrate(
		&model.Schedule{},
		&model.ExecutionLock{},
		&model.ScheduleExecution{},
		&model.ProcessedEmail{},
		&model.EntityExtraction{},
		&model.ActionItem{},
		&model.PromptTemplate{},
	)
}
