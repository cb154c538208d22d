package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"leadmatch/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// PropertyQueue is the in-memory queue that carries freshly ingested
// properties into matchmaking.
type PropertyQueue struct {
	items    chan *models.Property
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(*models.Property) error
}

// NewPropertyQueue creates a new property queue with the specified buffer size
func NewPropertyQueue(bufferSize int, logger *logrus.Logger) *PropertyQueue {
	if logger == nil {
		logger = logrus.New()
	}
	return &PropertyQueue{
		items:    make(chan *models.Property, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(*models.Property) error, 0),
	}
}

// Push adds a property to the queue
func (q *PropertyQueue) Push(property *models.Property) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	// Non-blocking send to prevent deadlocks
	select {
	case q.items <- property:
		q.logger.WithField("property_id", property.ID).Debug("Pushed property to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each property
func (q *PropertyQueue) Subscribe(handler func(*models.Property) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *PropertyQueue) Start() {
	go q.process()
}

// process handles the queue processing loop
func (q *PropertyQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case property := <-q.items:
			q.dispatch(property)
		}
	}
}

// dispatch sends the property to all subscribed handlers
func (q *PropertyQueue) dispatch(property *models.Property) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(property); err != nil {
			q.logger.WithError(err).WithField("property_id", property.ID).Error("Handler failed to process property")
		}
	}
}

// Close stops the queue and prevents new items from being added
func (q *PropertyQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	close(q.items)
	return nil
}

// Len returns the current number of properties in the queue
func (q *PropertyQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *PropertyQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
