package models

import (
	"time"

	"github.com/google/uuid"
)

// Server statuses as reported by the provisioning layer.
const (
	ServerStatusInstalling = "installing"
	ServerStatusOnline     = "online"
	ServerStatusOffline    = "offline"
	ServerStatusSuspended  = "suspended"
)

type Server struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Status      string    `json:"status"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
