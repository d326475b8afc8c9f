package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskdash/internal/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type kvEntry struct {
	Key       string `gorm:"column:entry_key;primaryKey;size:191"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (kvEntry) TableName() string {
	return "kv_entries"
}

// SQLStore keeps every key as one row of kv_entries; a write is a single
// upsert so a snapshot is replaced atomically.
type SQLStore struct {
	pool *database.DatabasePool
}

func NewSQLStore(pool *database.DatabasePool) (*SQLStore, error) {
	if pool == nil || pool.DB == nil {
		return nil, database.ErrNoConnection
	}

	if err := pool.DB.AutoMigrate(&kvEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv_entries: %w", err)
	}

	return &SQLStore{pool: pool}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry kvEntry
	err := s.pool.DB.WithContext(ctx).Where("entry_key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return entry.Value, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	entry := kvEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}

	err := s.pool.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	return s.pool.DB.WithContext(ctx).Where("entry_key = ?", key).Delete(&kvEntry{}).Error
}

func (s *SQLStore) Health(_ context.Context) error {
	return s.pool.Health()
}

func (s *SQLStore) Stats() map[string]interface{} {
	return s.pool.Stats()
}

func (s *SQLStore) Close() error {
	return s.pool.Close()
}
