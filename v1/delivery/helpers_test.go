package delivery

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/Aleph-Alpha/rabbit-dlq/v1/observability"
	"github.com/Aleph-Alpha/rabbit-dlq/v1/rabbit"
)

// fakeBroker is an in-memory rabbit.Client. Publishing through the default
// exchange appends to the queue named by the routing key; named exchanges are
// recorded but not routed.
type fakeBroker struct {
	mu        sync.Mutex
	queues    map[string][]*fakeDelivery
	declared  map[string]rabbit.QueueOptions
	published []publishedMessage
	consumed  []string

	publishErr error
}

type publishedMessage struct {
	route   rabbit.Route
	body    []byte
	headers map[string]interface{}
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		queues:   make(map[string][]*fakeDelivery),
		declared: make(map[string]rabbit.QueueOptions),
	}
}

func (b *fakeBroker) DeclareQueue(_ context.Context, name string, opts rabbit.QueueOptions) (rabbit.Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.declared[name] = opts
	return rabbit.Queue{Name: name, Messages: len(b.queues[name])}, nil
}

func (b *fakeBroker) DeclareExchange(context.Context, string, rabbit.ExchangeKind, bool) error {
	return nil
}

func (b *fakeBroker) Bind(context.Context, string, string, string) error {
	return nil
}

func (b *fakeBroker) Publish(_ context.Context, route rabbit.Route, msg []byte, headers ...map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}

	h := map[string]interface{}{}
	if len(headers) > 0 {
		h = maps.Clone(headers[0])
	}
	b.published = append(b.published, publishedMessage{route: route, body: msg, headers: h})
	if route.Exchange == "" {
		b.queues[route.RoutingKey] = append(b.queues[route.RoutingKey], &fakeDelivery{
			body:    msg,
			headers: h,
			route:   route,
		})
	}
	return nil
}

func (b *fakeBroker) Consume(ctx context.Context, wg *sync.WaitGroup, queue string, _ int) <-chan rabbit.Delivery {
	b.mu.Lock()
	b.consumed = append(b.consumed, queue)
	pending := b.queues[queue]
	b.queues[queue] = nil
	b.mu.Unlock()

	out := make(chan rabbit.Delivery)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		for _, d := range pending {
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (b *fakeBroker) RetryConnection(rabbit.Config) {}

func (b *fakeBroker) GracefulShutdown() {}

// pop removes the oldest message from queue, nil when the queue is empty.
func (b *fakeBroker) pop(queue string) *fakeDelivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queues[queue]) == 0 {
		return nil
	}
	d := b.queues[queue][0]
	b.queues[queue] = b.queues[queue][1:]
	return d
}

func (b *fakeBroker) messages(queue string) []*fakeDelivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*fakeDelivery{}, b.queues[queue]...)
}

// fakeDelivery records every settlement call made on it.
type fakeDelivery struct {
	body    []byte
	headers map[string]interface{}
	route   rabbit.Route

	mu      sync.Mutex
	actions []string
	ackErr  error
}

func (d *fakeDelivery) record(action string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = append(d.actions, action)
	return d.ackErr
}

func (d *fakeDelivery) AckMsg() error { return d.record("ack") }

func (d *fakeDelivery) NackMsg(requeue bool) error {
	if requeue {
		return d.record("nack_requeue")
	}
	return d.record("nack")
}

func (d *fakeDelivery) RejectMsg(requeue bool) error {
	if requeue {
		return d.record("reject_requeue")
	}
	return d.record("reject")
}

func (d *fakeDelivery) Body() []byte                   { return d.body }
func (d *fakeDelivery) Header() map[string]interface{} { return d.headers }
func (d *fakeDelivery) Route() rabbit.Route            { return d.route }

func (d *fakeDelivery) Actions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.actions...)
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []observability.OperationContext
}

func (r *recordingObserver) ObserveOperation(ctx observability.OperationContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, ctx)
}

func (r *recordingObserver) operations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.ops))
	for _, op := range r.ops {
		names = append(names, op.Operation)
	}
	return names
}

type memoryDeduplicator struct {
	mu      sync.Mutex
	seen    map[string]bool
	seenErr error
}

func newMemoryDeduplicator() *memoryDeduplicator {
	return &memoryDeduplicator{seen: map[string]bool{}}
}

func (m *memoryDeduplicator) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seenErr != nil {
		return false, m.seenErr
	}
	return m.seen[key], nil
}

func (m *memoryDeduplicator) Mark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[key] = true
	return nil
}

type memorySink struct {
	mu      sync.Mutex
	letters []DeadLetter
	err     error
}

func (s *memorySink) Store(_ context.Context, dl DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.letters = append(s.letters, dl)
	return nil
}

var errHandler = errors.New("handler failed")
