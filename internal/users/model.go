// Package users covers staff accounts and their login sessions: profile
// updates (propagated over the realtime channel) and the single active
// session per device rule, whose enforcement drives forced invalidation.
package users

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("users: not found")

type User struct {
	ID        string    `json:"id"`
	AreaID    int64     `json:"areaId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
