package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/purchase-approval/internal/domain/event"
)

// Dispatcher routes events to registered handlers
type Dispatcher interface {
	// SubscribeNamed registers a handler under a name used in logs
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// SubscribeAll registers one handler for several event types
	SubscribeAll(eventTypes []event.Type, name string, handler Handler)

	// Dispatch runs handlers in registration order and stops at the first error
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync runs every handler in its own goroutine and returns immediately
	DispatchAsync(ctx context.Context, evt *event.Event)

	// HandlerCount returns the number of handlers registered for eventType
	HandlerCount(eventType event.Type) int

	// Close rejects new events and waits for in-flight async handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	logger   Logger

	// wg.Add runs under mu while closed is false; Close sets closed before Wait
	wg     sync.WaitGroup
	closed bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]HandlerInfo),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], HandlerInfo{
		Name:      name,
		EventType: eventType,
		Handler:   handler,
	})

	if d.logger != nil {
		d.logger.Info("Handler registered",
			"event_type", eventType,
			"handler_name", name,
		)
	}
}

func (d *eventDispatcher) SubscribeAll(eventTypes []event.Type, name string, handler Handler) {
	for _, t := range eventTypes {
		d.SubscribeNamed(t, name, handler)
	}
}

func (d *eventDispatcher) HandlerCount(eventType event.Type) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[eventType])
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.mu.RLock()
	closed := d.closed
	handlers := append([]HandlerInfo(nil), d.handlers[evt.Type]...)
	d.mu.RUnlock()

	if closed {
		return fmt.Errorf("dispatcher is closed")
	}

	for _, info := range handlers {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			if d.logger != nil {
				d.logger.Error("Handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"request_id", evt.RequestID,
					"handler_name", info.Name,
					"error", err,
				)
			}
			return fmt.Errorf("handler %s failed: %w", info.Name, err)
		}
	}

	return nil
}

// DispatchAsync detaches the handlers from ctx cancellation so they outlive the caller's request
func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		if d.logger != nil {
			d.logger.Error("Cannot dispatch async event, dispatcher is closed",
				"event_type", evt.Type,
				"event_id", evt.ID,
			)
		}
		return
	}
	handlers := append([]HandlerInfo(nil), d.handlers[evt.Type]...)
	d.wg.Add(len(handlers))
	d.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, info := range handlers {
		go func(h HandlerInfo) {
			defer d.wg.Done()

			if err := d.safeExecute(detached, evt, h); err != nil && d.logger != nil {
				d.logger.Error("Async handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"request_id", evt.RequestID,
					"handler_name", h.Name,
					"error", err,
				)
			}
		}(info)
	}
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Info("Closing dispatcher, waiting for async handlers")
	}

	d.wg.Wait()
	return nil
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			if d.logger != nil {
				d.logger.Error("Handler panic recovered",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", info.Name,
					"panic", r,
				)
			}
		}
	}()

	return info.Handler(ctx, evt)
}
