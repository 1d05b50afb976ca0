package domain

import "time"

// User is a storefront account. Credentials are verified elsewhere; the
// hash is kept so profile updates can rotate it.
type User struct {
	ID           string    `json:"_id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	Phone        string    `json:"phone,omitempty" bson:"phone,omitempty"`
	IsAdmin      bool      `json:"isAdmin" bson:"isAdmin"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// UpdateProfileInput changes the caller's own profile. Nil fields are kept.
type UpdateProfileInput struct {
	Name     *string
	Email    *string
	Phone    *string
	Password *string
}
