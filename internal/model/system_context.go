package model

import (
	"context"
	"time"
)

// SystemContext is a saved system-context preset.
type SystemContext struct {
	ID        string    `json:"systemContextId"`
	Title     string    `json:"systemContextTitle"`
	Content   string    `json:"systemContext"`
	CreatedAt time.Time `json:"createdDate"`
}

// SystemContextStore persists system-context presets.
type SystemContextStore interface {
	// List returns the presets, newest first.
	List(ctx context.Context) ([]SystemContext, error)

	// Create stores a new preset and returns it with its assigned id
	Create(ctx context.Context, title, content string) (*SystemContext, error)

	// Delete removes a preset
	Delete(ctx context.Context, id string) error

	// UpdateTitle renames a preset
	UpdateTitle(ctx context.Context, id, title string) (*SystemContext, error)
}
