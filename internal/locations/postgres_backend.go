package locations

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// LocationRow is the table layout used by PostgresBackend.
type LocationRow struct {
	Query       string `gorm:"primaryKey;column:query"`
	Found       bool   `gorm:"column:found;not null"`
	DisplayName string `gorm:"column:display_name"`
	Latitude    string `gorm:"column:latitude"`
	Longitude   string `gorm:"column:longitude"`
}

// TableName overrides the gorm default.
func (LocationRow) TableName() string {
	return "location_cache"
}

const insertBatchSize = 500

// PostgresBackend keeps the cache in the location_cache table. Negative
// entries are rows with found = false.
type PostgresBackend struct {
	db *gorm.DB
}

// NewPostgresBackend uses db, which must already be migrated (see database.Migrate).
func NewPostgresBackend(db *gorm.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// Name implements Backend.
func (b *PostgresBackend) Name() string {
	return "postgres"
}

// Load implements Backend.
func (b *PostgresBackend) Load(ctx context.Context) (map[string]*Record, error) {
	var rows []LocationRow
	if err := b.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query location_cache: %w", err)
	}

	entries := make(map[string]*Record, len(rows))
	for _, row := range rows {
		if !row.Found {
			entries[row.Query] = nil
			continue
		}
		rec := Record{
			DisplayName: row.DisplayName,
			Latitude:    row.Latitude,
			Longitude:   row.Longitude,
		}
		if err := rec.validate(); err != nil {
			return nil, fmt.Errorf("%w: location_cache row %q: %v", ErrStorageCorrupt, row.Query, err)
		}
		entries[row.Query] = &rec
	}
	return entries, nil
}

// Save implements Backend. The table is cleared and refilled in one transaction.
func (b *PostgresBackend) Save(ctx context.Context, snapshot map[string]*Record) error {
	rows := make([]LocationRow, 0, len(snapshot))
	for query, rec := range snapshot {
		row := LocationRow{Query: query}
		if rec != nil {
			row.Found = true
			row.DisplayName = rec.DisplayName
			row.Latitude = rec.Latitude
			row.Longitude = rec.Longitude
		}
		rows = append(rows, row)
	}

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&LocationRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to write location_cache: %w", err)
	}
	return nil
}
