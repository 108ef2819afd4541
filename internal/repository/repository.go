package repository

import (
	"context"
	"time"

	"netlayers/internal/domain"
)

// MaxRecentFiles caps the recent-files list
const MaxRecentFiles = 10

// MaxSnapshotsPerPath caps the snapshots kept for one project file
const MaxSnapshotsPerPath = 20

// Snapshot is a saved copy of a project document
type Snapshot struct {
	ID              string           `json:"id"`
	Path            string           `json:"path"`
	Name            string           `json:"name"`
	CreatedAt       time.Time        `json:"created_at"`
	NodeCount       int              `json:"node_count"`
	ConnectionCount int              `json:"connection_count"`
	Document        *domain.Document `json:"document,omitempty"`
}

// RecentFile is an entry of the recently opened projects list
type RecentFile struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	OpenedAt time.Time `json:"opened_at"`
}

// Repository persists editor state that lives outside project files
type Repository interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, path string, doc *domain.Document) (*Snapshot, error)
	ListSnapshots(ctx context.Context, path string) ([]Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)

	// Recent files, most recent first
	TouchRecent(ctx context.Context, path, name string) error
	RecentFiles(ctx context.Context) ([]RecentFile, error)
	RemoveRecent(ctx context.Context, path string) error

	// Close releases resources
	Close() error
}
