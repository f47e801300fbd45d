package models

import "time"

// Status change sources.
const (
	SourceCreate = "create"
	SourceStaff  = "staff"
	SourceBulk   = "bulk"
	SourceQuote  = "quote"
	SourceReopen = "reopen"
)

// StatusEvent records one status change of a repair. Rows are never updated.
type StatusEvent struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	RepairID  uint         `gorm:"not null;index" json:"repair_id"`
	ActorID   uint         `gorm:"not null" json:"actor_id"`
	From      RepairStatus `gorm:"column:from_status;size:50" json:"from"`
	To        RepairStatus `gorm:"column:to_status;size:50;not null" json:"to"`
	Source    string       `gorm:"size:20;not null" json:"source"`
	CreatedAt time.Time    `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for the StatusEvent model
func (StatusEvent) TableName() string {
	return "status_events"
}
