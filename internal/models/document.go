package models

import (
	"time"

	"gorm.io/datatypes"
)

// Document is a schemaless record stored as JSONB, addressed by collection and id.
type Document struct {
	Collection string            `gorm:"size:100;primaryKey" json:"collection"`
	ID         string            `gorm:"size:128;primaryKey" json:"id"`
	Data       datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"data"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
