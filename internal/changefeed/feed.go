package changefeed

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Op is the mutation kind carried by a change notification.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Table names the entity collection a notification refers to.
type Table string

const (
	TableCustomer       Table = "customer"
	TableDeliveryRecord Table = "delivery_record"
	TablePaymentEntry   Table = "payment_entry"
)

// Event is one change notification. Row carries the full row for
// insert/update and the pre-delete row (or just its key fields) for delete.
// Events carry no ordering token; consumers must apply them idempotently.
type Event struct {
	ID    string
	Op    Op
	Table Table
	Key   string
	Row   any
}

// Feed is the push-based change-notification stream emitted on every store
// mutation.
type Feed interface {
	Publish(ctx context.Context, event Event)
	Subscribe(ctx context.Context) (*Subscription, error)
}

const defaultSubscriberBuffer = 256

// Hub is the in-process Feed. Delivery to a subscriber preserves publish
// order; a subscriber that cannot keep up is dropped and must recover with a
// full projection refresh.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
}

type Subscription struct {
	hub  *Hub
	id   uint64
	ch   chan Event
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: defaultSubscriberBuffer,
	}
}

func (h *Hub) Publish(ctx context.Context, event Event) {
	_ = ctx
	if h == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	// Sends happen under the read lock so no subscription channel can be
	// closed mid-send; Close takes the write lock.
	var dropped []*Subscription
	h.mu.RLock()
	for _, sub := range h.subs {
		select {
		case sub.ch <- event:
		default:
			dropped = append(dropped, sub)
		}
	}
	h.mu.RUnlock()

	// Slow consumers are dropped rather than blocking the write path; they
	// recover with a full projection refresh.
	for _, sub := range dropped {
		sub.Close()
	}
}

func (h *Hub) Subscribe(ctx context.Context) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	sub := &Subscription{
		hub: h,
		id:  id,
		ch:  make(chan Event, h.buffer),
	}
	h.subs[id] = sub
	h.mu.Unlock()

	return sub, nil
}

// Events returns the subscriber channel. It is closed when the subscription
// ends, whether by Close or by being dropped as a slow consumer.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}
