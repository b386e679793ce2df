package db

import (
	"time"

	"gorm.io/gorm"
)

// Snapshot is one persisted state owner. Key is the namespaced owner id
// (e.g. "camera_manager_devices"); Data is the owner's full JSON state.
type Snapshot struct {
	Key string `gorm:"primaryKey;column:snapshot_key;type:varchar(255)"`

	// Data is the opaque JSON serialisation written by the owner.
	Data []byte `gorm:"column:data;not null"`

	// UpdatedAt is when the snapshot was last rewritten.
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Snapshot) TableName() string {
	return "console_snapshots"
}

// AutoMigrate creates or updates the console tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Snapshot{})
}
