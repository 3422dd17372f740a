// Package mode decides whether binding reads come from the live table or a
// frozen snapshot.
package mode

import (
	"errors"
	"fmt"

	"github.com/oakwood-commons/dashx/pkg/binding"
)

// ErrInvalidTransition is returned for a mode change that is not allowed
// from the current state.
var ErrInvalidTransition = errors.New("invalid transition")

// DataMode is live or snapshot.
type DataMode string

const (
	Live     DataMode = "live"
	Snapshot DataMode = "snapshot"
)

// Controller holds the current data mode. The zero value is live.
// A snapshot id is set if and only if the mode is snapshot.
type Controller struct {
	snapshotID string
	frozen     binding.Frozen
}

// Mode returns the current data mode.
func (c *Controller) Mode() DataMode {
	if c.snapshotID != "" {
		return Snapshot
	}
	return Live
}

// SnapshotID returns the active snapshot id, empty when live.
func (c *Controller) SnapshotID() string { return c.snapshotID }

// EnterSnapshot freezes reads to data under id. The id must be non-empty and
// the controller must be live.
func (c *Controller) EnterSnapshot(id string, data binding.Frozen) error {
	if id == "" {
		return fmt.Errorf("%w: snapshot id is required", ErrInvalidTransition)
	}
	if c.snapshotID != "" {
		return fmt.Errorf("%w: already in snapshot %q", ErrInvalidTransition, c.snapshotID)
	}
	c.snapshotID = id
	c.frozen = data
	return nil
}

// ExitSnapshot drops the frozen copy and returns to live.
func (c *Controller) ExitSnapshot() error {
	if c.snapshotID == "" {
		return fmt.Errorf("%w: already live", ErrInvalidTransition)
	}
	c.snapshotID = ""
	c.frozen = binding.Frozen{}
	return nil
}

// Writable reports whether the live table accepts writes.
func (c *Controller) Writable() bool {
	return c.Mode() == Live
}

// Reader returns the frozen copy in snapshot mode and live otherwise.
func (c *Controller) Reader(live binding.Reader) binding.Reader {
	switch c.Mode() {
	case Snapshot:
		return c.frozen
	case Live:
		return live
	}
	return live
}

// Frozen returns the frozen copy and whether one is active.
func (c *Controller) Frozen() (binding.Frozen, bool) {
	return c.frozen, c.snapshotID != ""
}
