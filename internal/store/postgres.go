package store

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnInfo describes the single connection the store needs.
type ConnInfo struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

func (c ConnInfo) dsn(dbname string) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.User, c.Password, dbname, c.Port,
	)
}

// Open connects to Postgres, creating the target database if it does not
// exist, and verifies the pgvector extension before migrating the schema.
// A missing vector extension is a hard failure, not a degraded mode.
func Open(info ConnInfo) (*gorm.DB, error) {
	if err := ensureDatabase(info); err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(info.dsn(info.Database)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("vector extension unavailable: %w", err)
	}

	if err := db.AutoMigrate(&Image{}); err != nil {
		return nil, fmt.Errorf("images table migration failed: %w", err)
	}

	log.Println("PostgreSQL connected, schema migrated")
	return db, nil
}

// ensureDatabase creates the target database if absent. Postgres has no
// CREATE DATABASE IF NOT EXISTS, so check pg_database first via the
// maintenance database.
func ensureDatabase(info ConnInfo) error {
	admin, err := gorm.Open(postgres.Open(info.dsn("postgres")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect maintenance database: %w", err)
	}
	sqlDB, err := admin.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var count int64
	err = admin.Raw("SELECT COUNT(*) FROM pg_database WHERE datname = ?", info.Database).Scan(&count).Error
	if err != nil {
		return fmt.Errorf("failed to query pg_database: %w", err)
	}
	if count > 0 {
		return nil
	}

	// Database names cannot be bound parameters; the name comes from our own
	// configuration, not request input.
	if err := admin.Exec(fmt.Sprintf("CREATE DATABASE %q", info.Database)).Error; err != nil {
		return fmt.Errorf("failed to create database %s: %w", info.Database, err)
	}
	log.Printf("Created database %s", info.Database)
	return nil
}
