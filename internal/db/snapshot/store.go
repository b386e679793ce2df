package snapshot

import (
	"errors"

	"github.com/m0rjc/DeviceConsole/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Get retrieves the snapshot stored under key.
// Returns nil, nil if no snapshot exists.
func Get(conns *db.Connections, key string) (*db.Snapshot, error) {
	var record db.Snapshot
	err := conns.DB.Where("snapshot_key = ?", key).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Upsert creates or replaces the snapshot stored under key.
func Upsert(conns *db.Connections, key string, data []byte) error {
	return conns.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "snapshot_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&db.Snapshot{Key: key, Data: data}).Error
}

// Delete removes the snapshot stored under key.
func Delete(conns *db.Connections, key string) error {
	return conns.DB.Where("snapshot_key = ?", key).Delete(&db.Snapshot{}).Error
}

// ListKeys returns the keys of every stored snapshot.
func ListKeys(conns *db.Connections) ([]string, error) {
	var keys []string
	err := conns.DB.Model(&db.Snapshot{}).Order("snapshot_key").Pluck("snapshot_key", &keys).Error
	return keys, err
}
