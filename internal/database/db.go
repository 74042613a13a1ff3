package database

import (
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"               // SQLite driver
)

var DB *gorm.DB

// Entry is one persisted key/value pair. Carts and the customer display
// name are stored as entries.
type Entry struct {
	Key       string `gorm:"primary_key;size:255"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName keeps the table name stable across dialects
func (Entry) TableName() string {
	return "kv_entries"
}

// Open connects to driver ("sqlite3" or "postgres") and migrates the
// key/value table.
func Open(driver, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if err := db.AutoMigrate(&Entry{}).Error; err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate key/value table: %w", err)
	}
	return db, nil
}

// InitDB initializes the shared database connection
func InitDB(driver, dsn string) error {
	db, err := Open(driver, dsn)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// CloseDB closes the database connection
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
