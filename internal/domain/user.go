package domain

import "time"

// User is an account allowed to log in to the store
type User struct {
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
