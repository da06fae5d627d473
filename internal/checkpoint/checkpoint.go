// Package checkpoint snapshots workspace files so that a task or an atomic
// apply can be reverted.
package checkpoint

import (
	"context"
	"time"
)

// Checkpoint describes one snapshot.
type Checkpoint struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	// Files maps a workdir-relative path to the blake3 hash of its content.
	// An empty hash records that the path did not exist at snapshot time.
	Files map[string]string `json:"files"`
	// Workspace marks a snapshot of the whole working directory. Restoring it
	// also removes files created afterwards.
	Workspace bool `json:"workspace,omitempty"`
}

// Store creates and restores checkpoints.
type Store interface {
	CreateCheckpoint(ctx context.Context, id, description string, paths ...string) (*Checkpoint, error)
	Restore(ctx context.Context, id string) (bool, error)
}

// Missing reports whether path was absent when the checkpoint was taken.
func (c *Checkpoint) Missing(path string) bool {
	h, ok := c.Files[path]
	return ok && h == ""
}
