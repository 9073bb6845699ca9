package models

import (
	"time"

	"github.com/google/uuid"
)

// Subuser is a delegated, non-owner access grant on a specific server.
type Subuser struct {
	ID          uuid.UUID `json:"id"`
	ServerID    uuid.UUID `json:"server_id"`
	UserID      int64     `json:"user_id"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`

	Account *Account `json:"account,omitempty"`
}
