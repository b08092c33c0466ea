package worker

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/aona-labs/aona/pkg/eventstream"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.Event
	fail   bool
	block  chan struct{}
}

func (r *recordingPublisher) Publish(_ context.Context, e *eventstream.Event) error {
	if r.block != nil {
		<-r.block
	}
	if r.fail {
		return errors.New("broker down")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

var _ = Describe("Worker Pool", func() {
	var (
		pub *recordingPublisher
		wp  *Pool
	)

	event := func(id string) *eventstream.Event {
		return &eventstream.Event{EventType: eventstream.EventTypeAlertRaised, EventID: id}
	}

	BeforeEach(func() {
		pub = &recordingPublisher{}
		logger, _ := zap.NewDevelopment()

		var err error
		wp, err = NewPool(&Config{Publisher: pub, Logger: logger})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a publisher", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(HaveOccurred())
	})

	It("publishes every queued event before Close returns", func() {
		for _, id := range []string{"a", "b", "c"} {
			Expect(wp.Enqueue(Job{Event: event(id)})).To(BeTrue())
		}
		wp.Close()
		Expect(pub.count()).To(Equal(3))
	})

	It("ignores jobs without an event", func() {
		Expect(wp.Enqueue(Job{})).To(BeFalse())
		wp.Close()
	})

	It("keeps running when publishing fails", func() {
		pub.fail = true
		Expect(wp.Enqueue(Job{Event: event("a")})).To(BeTrue())
		wp.Close()
		Expect(pub.count()).To(BeZero())
	})

	It("drops events when the queue is full", func() {
		wp.Close()

		blocked := &recordingPublisher{block: make(chan struct{})}
		small, err := NewPool(&Config{Publisher: blocked, NumWorkers: 1, QueueSize: 1})
		Expect(err).NotTo(HaveOccurred())

		// One event is held by the worker, one fills the queue.
		Expect(small.Enqueue(Job{Event: event("1")})).To(BeTrue())
		Eventually(func() bool {
			return small.Enqueue(Job{Event: event("2")})
		}).Should(BeTrue())
		Expect(small.Enqueue(Job{Event: event("3")})).To(BeFalse())

		close(blocked.block)
		small.Close()
		Expect(blocked.count()).To(Equal(2))
	})
})
