package session

import (
	"context"
	"fmt"

	"github.com/oakwood-commons/dashx/pkg/binding"
	"github.com/oakwood-commons/dashx/pkg/document"
	"github.com/oakwood-commons/dashx/pkg/snapshot"
)

// Loaded is a dashboard document with its initial data.
type Loaded struct {
	Document     *document.Document
	Data         binding.Contents
	Dependencies binding.Dependencies
}

// Loader provides the dashboard catalog and loads dashboards by full name.
type Loader interface {
	Dashboards(ctx context.Context) (document.Catalog, error)
	Load(ctx context.Context, fullName string) (Loaded, error)
}

// LiveSource delivers binding updates for a dashboard until ctx is done.
// The returned channel is closed when delivery stops.
type LiveSource interface {
	Subscribe(ctx context.Context, fullName string) (<-chan binding.Update, error)
}

// SnapshotStore returns stored snapshots by id.
type SnapshotStore interface {
	Get(ctx context.Context, id string) (snapshot.Snapshot, error)
}

// LoadError records a failed dashboard or snapshot load.
type LoadError struct {
	FullName string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.FullName, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
