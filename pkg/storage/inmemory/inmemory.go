package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/aona-labs/aona/pkg/reading"
	"github.com/aona-labs/aona/pkg/report"
	"github.com/aona-labs/aona/pkg/storage"
)

// Driver implements storage.Driver in memory.
type Driver struct {
	mu sync.RWMutex

	nodes    map[string]*storage.Node
	order    []string
	readings map[string][]reading.Reading
	runs     map[string]*report.Run
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		nodes:    make(map[string]*storage.Node),
		readings: make(map[string][]reading.Reading),
		runs:     make(map[string]*report.Run),
	}
}

// PutNode creates or updates a node.
func (d *Driver) PutNode(_ context.Context, node *storage.Node) error {
	if node == nil || node.ID == "" {
		return errors.New("cannot store node without id")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.nodes[node.ID]; ok {
		existing.Name = node.Name
		existing.Location = node.Location
		existing.Recipient = node.Recipient
		return nil
	}

	n := *node
	n.TotalReadings = 0
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	d.nodes[n.ID] = &n
	d.order = append(d.order, n.ID)
	return nil
}

// GetNode returns a copy of a node.
func (d *Driver) GetNode(_ context.Context, id string) (*storage.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, ok := d.nodes[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "node", ID: id}
	}
	cp := *n
	return &cp, nil
}

// ListNodes returns nodes in insertion order.
func (d *Driver) ListNodes(_ context.Context) ([]*storage.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*storage.Node, 0, len(d.order))
	for _, id := range d.order {
		cp := *d.nodes[id]
		out = append(out, &cp)
	}
	return out, nil
}

// AppendReading stores r under the next sequence number.
func (d *Driver) AppendReading(_ context.Context, nodeID string, r reading.Reading) (reading.Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.nodes[nodeID]
	if !ok {
		return reading.Reading{}, storage.NotFoundError{Kind: "node", ID: nodeID}
	}
	n.TotalReadings++
	r.Sequence = n.TotalReadings
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	d.readings[nodeID] = append(d.readings[nodeID], r)
	return r, nil
}

// LatestReading returns the last appended reading.
func (d *Driver) LatestReading(_ context.Context, nodeID string) (*reading.Reading, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rs := d.readings[nodeID]
	if len(rs) == 0 {
		return nil, storage.NotFoundError{Kind: "reading", ID: nodeID}
	}
	r := rs[len(rs)-1]
	return &r, nil
}

// SaveRun stores run, replacing any run with the same id.
func (d *Driver) SaveRun(_ context.Context, run *report.Run) error {
	if run == nil || run.ID == "" {
		return errors.New("cannot store run without id")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *run
	d.runs[run.ID] = &cp
	return nil
}

// GetRun returns a stored run.
func (d *Driver) GetRun(_ context.Context, id string) (*report.Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	run, ok := d.runs[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "run", ID: id}
	}
	cp := *run
	return &cp, nil
}

// LatestRun returns the run with the latest start time.
func (d *Driver) LatestRun(ctx context.Context) (*report.Run, error) {
	runs, err := d.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, storage.NotFoundError{Kind: "run"}
	}
	return runs[0], nil
}

// ListRuns returns runs newest first.
func (d *Driver) ListRuns(_ context.Context, limit int) ([]*report.Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*report.Run, 0, len(d.runs))
	for _, run := range d.runs {
		cp := *run
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}
