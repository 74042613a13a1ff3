package models

// User is the authenticated operator or diner account
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
}

// Credentials are posted to the login and register endpoints
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// AuthToken is returned by login, register and refresh
type AuthToken struct {
	AccessToken string `json:"accessToken"`
	User        *User  `json:"user,omitempty"`
}
