package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User maps the identity provider's subject onto an internal id.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AuthID    string    `gorm:"uniqueIndex;not null" json:"authId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
