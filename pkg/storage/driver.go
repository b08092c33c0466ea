// Package storage persists the node catalog and agent runs.
package storage

import (
	"context"
	"time"

	"github.com/aona-labs/aona/pkg/reading"
	"github.com/aona-labs/aona/pkg/report"
)

// Node is a sensor node in the catalog the access gate serves.
type Node struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Location  string `json:"location,omitempty"`
	Recipient string `json:"recipient"`

	// TotalReadings is the number of readings ever appended; reputation is
	// derived from it.
	TotalReadings uint64    `json:"totalReadings"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NodeStore is the node catalog.
type NodeStore interface {
	// PutNode creates or updates node metadata. TotalReadings is owned by the
	// store and ignored on update.
	PutNode(ctx context.Context, node *Node) error

	// GetNode returns a node or NotFoundError.
	GetNode(ctx context.Context, id string) (*Node, error)

	// ListNodes returns every node in creation order.
	ListNodes(ctx context.Context) ([]*Node, error)

	// AppendReading stores r for a node, assigning the next sequence number
	// and incrementing the node's reading count.
	AppendReading(ctx context.Context, nodeID string, r reading.Reading) (reading.Reading, error)

	// LatestReading returns the reading with the highest sequence, or
	// NotFoundError when the node has none.
	LatestReading(ctx context.Context, nodeID string) (*reading.Reading, error)
}

// RunStore keeps finalized agent runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *report.Run) error
	GetRun(ctx context.Context, id string) (*report.Run, error)

	// LatestRun returns the most recently started run.
	LatestRun(ctx context.Context) (*report.Run, error)

	// ListRuns returns up to limit runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*report.Run, error)
}

// Driver is a storage backend.
type Driver interface {
	NodeStore
	RunStore

	// Close closes the store and releases any resources.
	Close() error
}
