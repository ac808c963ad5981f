package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a registered profile. The realtime core only ever mutates
// OnlineStatus, CurrentRoom and LastSeen; everything else is written at
// registration time.
type User struct {
	ID           string `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Gender is the user's own attribute category; Preference is the
	// category they want to be matched with, or the "All" wildcard.
	Gender      string `gorm:"not null" json:"gender"`
	Preference  string `gorm:"not null" json:"preference"`
	NSFWEnabled bool   `json:"nsfw_enabled"`
	AvatarURL   string `json:"avatar_url,omitempty"`

	OnlineStatus bool `json:"online_status"`
	// CurrentRoom points at the user's active chat room, nil when idle.
	CurrentRoom *string    `gorm:"type:uuid" json:"current_room,omitempty"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// PreferenceAll is the wildcard preference. It only ever matches itself.
const PreferenceAll = "All"

// BeforeCreate is a GORM hook that assigns a fresh UUID when the record
// is created without an ID.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// PublicProfile is the subset of User safe to show to a chat partner.
type PublicProfile struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	AvatarURL    string `json:"avatar_url,omitempty"`
	OnlineStatus bool   `json:"online_status"`
}

// Public strips credentials and matching attributes from a profile.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:           u.ID,
		Username:     u.Username,
		AvatarURL:    u.AvatarURL,
		OnlineStatus: u.OnlineStatus,
	}
}
