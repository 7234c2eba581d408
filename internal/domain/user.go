package domain

import "time"

// User is a registered account. PasswordHash always holds a bcrypt digest.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
