package model

import "time"

// User is the stable identity the rest of the core keys on. Identity
// itself comes from an external provider (email subject or Telegram
// account); the core only needs the opaque ID.
type User struct {
	ID         string `gorm:"primaryKey"`
	Email      string `gorm:"uniqueIndex"`
	Name       string
	TelegramID int64 `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserPreference holds per-user settings consulted by the classifier
// and the view layer.
type UserPreference struct {
	UserID       string `gorm:"primaryKey"`
	DefaultView  string // "list" or "matrix"
	CustomPrompt string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
