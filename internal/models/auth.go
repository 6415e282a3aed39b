package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Actor is the identity a request acts as. The zero value is anonymous.
type Actor struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

// Authenticated reports whether the actor is a known user.
func (a Actor) Authenticated() bool {
	return a.ID != 0
}

// Privileged reports whether the actor may see diagnostics and
// otherwise-restricted listings.
func (a Actor) Privileged() bool {
	return a.IsStaff || a.IsSuperuser
}

// JWTClaims describes the access token payload issued by the identity provider.
type JWTClaims struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Staff     bool   `json:"is_staff"`
	Superuser bool   `json:"is_superuser"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the dispatcher's actor identity.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{ID: c.UserID, Username: c.Username, IsStaff: c.Staff || c.Superuser, IsSuperuser: c.Superuser}
}
