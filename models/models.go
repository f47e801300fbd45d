package models

import "gorm.io/gorm"

// All returns every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Repair{},
		&Quote{},
		&FinalInvoice{},
		&StatusEvent{},
	}
}

// AutoMigrate creates or updates the schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
