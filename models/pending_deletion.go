package models

import "time"

// PendingDeletion ist ein Outbox-Eintrag für ein Speicherobjekt, das gelöscht werden muss.
// Einträge entstehen in derselben Transaktion wie die Projektänderung.
type PendingDeletion struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ObjectKey string `json:"object_key" gorm:"size:256;not null;index"`
	Attempts  int    `json:"attempts" gorm:"not null;default:0"`
	LastError string `json:"last_error,omitempty" gorm:"type:text"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (PendingDeletion) TableName() string {
	return "pending_deletions"
}
