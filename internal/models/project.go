package models

import (
	"time"

	"github.com/google/uuid"

	"timeline-editor/internal/session"
)

// Project is one saved editing session. The timeline lists are stored as
// JSONB columns and serialised flat next to the project fields.
type Project struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`

	session.Payload

	IsPremium bool `json:"is_premium"`

	// Version is bumped on every save.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectSummary is the listing row; it leaves the timeline out.
type ProjectSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsPremium bool      `json:"is_premium"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}
