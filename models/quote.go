package models

import (
	"time"

	"gorm.io/gorm"
)

// Quote is a staff-issued price quote (presupuesto) for a repair
type Quote struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	RepairID      uint           `gorm:"not null;index" json:"repair_id"`
	Repair        *Repair        `gorm:"foreignKey:RepairID" json:"repair,omitempty"`
	CreatedByID   uint           `gorm:"not null;index" json:"created_by_id"`
	CreatedBy     *User          `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	FileKey       string         `gorm:"not null" json:"file_key"`
	FileName      string         `gorm:"not null" json:"file_name"`
	Status        QuoteStatus    `gorm:"size:20;not null;default:'pendiente';index" json:"status"`
	Amount        *float64       `json:"amount"`
	Currency      Currency       `gorm:"size:3;not null;default:'ARS'" json:"currency"`
	InternalNotes string         `gorm:"type:text" json:"-"`
	PaymentLink   *string        `json:"payment_link"` // deposit checkout, set once the quote is sent
	SentAt        *time.Time     `json:"sent_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Quote model
func (Quote) TableName() string {
	return "quotes"
}
