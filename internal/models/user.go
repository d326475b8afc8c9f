package models

import "strings"

// User is the identity held by the session marker.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Email
}
