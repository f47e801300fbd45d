package models

import (
	"time"

	"gorm.io/gorm"
)

// FinalInvoice is the invoice issued once a repair is finalized. A repair has
// at most one.
type FinalInvoice struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	RepairID      uint           `gorm:"not null;uniqueIndex" json:"repair_id"`
	TotalAmount   float64        `gorm:"not null" json:"total_amount"`
	Currency      Currency       `gorm:"size:3;not null;default:'ARS'" json:"currency"`
	FileKey       *string        `json:"file_key"`
	FileName      *string        `json:"file_name"`
	Link          *string        `json:"link"`
	InternalNotes string         `gorm:"type:text" json:"-"`
	CreatedByID   uint           `gorm:"not null" json:"created_by_id"`
	CreatedBy     *User          `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the FinalInvoice model
func (FinalInvoice) TableName() string {
	return "final_invoices"
}

// HasFile reports whether the invoice was uploaded as a file.
func (f FinalInvoice) HasFile() bool {
	return f.FileKey != nil && *f.FileKey != ""
}
