package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/chat-client/pkg/database"
)

// EntryModel is the GORM model for mirror entries.
type EntryModel struct {
	Key       string    `gorm:"column:entry_key;type:varchar(191);primaryKey"`
	Value     []byte    `gorm:"column:entry_value;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for EntryModel.
func (EntryModel) TableName() string {
	return "mirror_entries"
}

// SQLBackend stores entries in a single table through GORM.
type SQLBackend struct {
	db *gorm.DB
}

// NewSQLBackend opens the database and migrates the entries table.
func NewSQLBackend(cfg *database.Config) (*SQLBackend, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	return NewSQLBackendWithDB(db)
}

// NewSQLBackendWithDB uses an already opened database.
func NewSQLBackendWithDB(db *gorm.DB) (*SQLBackend, error) {
	if err := db.AutoMigrate(&EntryModel{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate mirror entries: %w", err)
	}
	return &SQLBackend{db: db}, nil
}

func (b *SQLBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var entry EntryModel
	err := b.db.WithContext(ctx).Where("entry_key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mirror entry: %w", err)
	}
	return entry.Value, nil
}

func (b *SQLBackend) Set(ctx context.Context, key string, value []byte) error {
	entry := EntryModel{Key: key, Value: value}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to set mirror entry: %w", err)
	}
	return nil
}

func (b *SQLBackend) Delete(ctx context.Context, key string) error {
	err := b.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&EntryModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete mirror entry: %w", err)
	}
	return nil
}

func (b *SQLBackend) Close() error {
	return database.Close(b.db)
}
