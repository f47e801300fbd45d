package models

import (
	"path"
	"time"

	"gorm.io/gorm"
)

// Repair is a customer's repair request
type Repair struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UserID            uint           `gorm:"not null;index" json:"user_id"`
	User              User           `gorm:"foreignKey:UserID" json:"user"`
	CustomerName      string         `gorm:"size:100;not null" json:"customer_name"`
	Phone             string         `gorm:"size:20;not null" json:"phone"`
	Location          string         `gorm:"size:200" json:"location"`
	EquipmentType     string         `gorm:"size:50;not null;index" json:"equipment_type"`
	Description       string         `gorm:"type:text;not null" json:"description"`
	ImageKey          string         `gorm:"not null" json:"image_key"`
	SecondImageKey    *string        `json:"second_image_key"`
	VideoKey          *string        `json:"video_key"`
	Status            RepairStatus   `gorm:"size:50;not null;default:'recibida';index" json:"status"`
	Priority          int            `gorm:"not null;default:1" json:"priority"` // 1 = attended first
	EstimatedDelivery *time.Time     `json:"estimated_delivery"`
	AdminComment      *string        `gorm:"type:text" json:"admin_comment"`
	Quotes            []Quote        `gorm:"foreignKey:RepairID" json:"quotes,omitempty"`
	FinalInvoice      *FinalInvoice  `gorm:"foreignKey:RepairID" json:"final_invoice,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Repair model
func (Repair) TableName() string {
	return "repairs"
}

func (r Repair) String() string {
	return r.EquipmentType + " - " + r.CustomerName
}

// MediaKey returns the storage key of the named media slot.
func (r Repair) MediaKey(kind MediaKind) string {
	switch kind {
	case MediaImage:
		return r.ImageKey
	case MediaSecondImage:
		if r.SecondImageKey != nil {
			return *r.SecondImageKey
		}
	case MediaVideo:
		if r.VideoKey != nil {
			return *r.VideoKey
		}
	}
	return ""
}

// CustomerQuotes returns the quotes the owner is allowed to see.
func (r Repair) CustomerQuotes() []Quote {
	var visible []Quote
	for _, q := range r.Quotes {
		if q.Status.VisibleToCustomer() {
			visible = append(visible, q)
		}
	}
	return visible
}

// MediaKind names one of the files attached to a repair.
type MediaKind string

const (
	MediaImage       MediaKind = "imagen"
	MediaSecondImage MediaKind = "imagen2"
	MediaVideo       MediaKind = "video"
)

func ParseMediaKind(v string) (MediaKind, bool) {
	switch MediaKind(v) {
	case MediaImage, MediaSecondImage, MediaVideo:
		return MediaKind(v), true
	}
	return "", false
}

// FileName is the base name of a storage key.
func FileName(key string) string {
	return path.Base(key)
}
