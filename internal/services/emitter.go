package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"service-auction/internal/domain"
	"service-auction/pkg/logger"
)

var ErrEventDropped = errors.New("audit event dropped: queue full")

// emitAll delivers events after a transition has been committed. Failures
// are logged only.
func emitAll(ctx context.Context, emitter domain.Emitter, log logger.Logger, events ...*domain.AuditEvent) {
	if emitter == nil {
		return
	}
	for _, event := range events {
		if err := emitter.Emit(ctx, event); err != nil {
			log.Error("Failed to emit audit event", "kind", event.Kind, "auction_id", event.AuctionID, "error", err)
		}
	}
}

// LogEmitter writes audit events to the service log.
type LogEmitter struct {
	log logger.Logger
}

func NewLogEmitter(log logger.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) Emit(_ context.Context, event *domain.AuditEvent) error {
	e.log.Info("Audit event",
		"kind", event.Kind,
		"auction_id", event.AuctionID,
		"actor", event.Actor,
		"payload", event.Payload,
		"timestamp", event.Timestamp)
	return nil
}

// MultiEmitter hands every event to each emitter, returning the joined
// errors.
type MultiEmitter []domain.Emitter

func (m MultiEmitter) Emit(ctx context.Context, event *domain.AuditEvent) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AsyncEmitter queues events and delivers them from a background goroutine.
// When the queue is full the event is dropped instead of blocking the
// caller.
type AsyncEmitter struct {
	next    domain.Emitter
	timeout time.Duration
	log     logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *domain.AuditEvent
	done   chan struct{}
}

func NewAsyncEmitter(next domain.Emitter, bufferSize int, log logger.Logger) *AsyncEmitter {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	e := &AsyncEmitter{
		next:    next,
		timeout: 5 * time.Second,
		log:     log,
		queue:   make(chan *domain.AuditEvent, bufferSize),
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *AsyncEmitter) Emit(_ context.Context, event *domain.AuditEvent) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrEventDropped
	}
	select {
	case e.queue <- event:
		return nil
	default:
		return ErrEventDropped
	}
}

// Close stops accepting events and waits until the queued ones are
// delivered.
func (e *AsyncEmitter) Close() error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	<-e.done
	return nil
}

func (e *AsyncEmitter) run() {
	defer close(e.done)

	for event := range e.queue {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		if err := e.next.Emit(ctx, event); err != nil {
			e.log.Error("Failed to deliver audit event", "kind", event.Kind, "auction_id", event.AuctionID, "error", err)
		}
		cancel()
	}
}
