package domain

import "time"

// User is the order owner, resolved from the checkout contact email or
// created as a guest when no email is given.
type User struct {
	ID        string    `json:"id"`
	Email     *string   `json:"email,omitempty"`
	FullName  string    `json:"fullName,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	IsGuest   bool      `json:"isGuest"`
	CreatedAt time.Time `json:"createdAt"`
}
