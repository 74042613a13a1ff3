package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/jinzhu/gorm"

	"neembleeat/internal/database"
)

// Store is the key/value persistence the cart is written through.
// Get reports ok=false for a missing key.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStore is an in-memory Store.
// It is safe for concurrent use via internal RWMutex.
type MemoryStore struct {
	entries map[string]string
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// Get returns the value stored under key
func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

// Set stores value under key
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len returns the number of stored keys
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// GormStore persists entries in the kv_entries table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an opened and migrated database
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns the value stored under key
func (s *GormStore) Get(key string) (string, bool, error) {
	var e database.Entry
	err := s.db.Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

// Set upserts value under key
func (s *GormStore) Set(key, value string) error {
	e := database.Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.Save(&e).Error
}

// Delete removes key
func (s *GormStore) Delete(key string) error {
	return s.db.Where("key = ?", key).Delete(&database.Entry{}).Error
}
