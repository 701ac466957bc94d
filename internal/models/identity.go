package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the credential record kept by the Postgres identity provider.
type Identity struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string    `gorm:"not null;size:255;uniqueIndex" json:"email"`
	PhoneNumber  string    `gorm:"size:20;uniqueIndex" json:"phone_number"`
	DisplayName  string    `gorm:"size:255" json:"display_name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
