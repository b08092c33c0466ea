// Package nop is the disabled event stream. Events are validated and
// counted, then dropped.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/aona-labs/aona/pkg/eventstream"
)

// Publisher drops every event.
type Publisher struct {
	dropped atomic.Uint64
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish rejects nil events and drops the rest.
func (p *Publisher) Publish(_ context.Context, event *eventstream.Event) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	p.dropped.Add(1)
	return nil
}

// Dropped is the number of events accepted so far.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Publisher) Close() error {
	return nil
}
