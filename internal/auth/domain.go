package auth

import "time"

// MinPasswordLength is the shortest accepted plaintext password.
const MinPasswordLength = 6

// MaxPasswordBytes is the longest plaintext bcrypt accepts.
const MaxPasswordBytes = 72

// User represents a stored user account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserView is the outward representation of a user. It never carries the
// password hash.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// View projects the user into its response shape.
func (u *User) View() UserView {
	return UserView{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}
}

// DisplayName returns the name, falling back to the email.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// NewUser holds the fields written at signup.
type NewUser struct {
	Email        string
	Name         string
	PasswordHash string
}

// ProfileUpdate lists the mutable profile fields. Nil fields are left as is.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	User      UserView  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
