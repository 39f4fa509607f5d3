package queue

import (
	"fmt"
	"sync"
)

// InMemoryQueue implements an in-memory queue backed by a buffered channel.
type InMemoryQueue struct {
	ch   chan interface{}
	lock sync.Mutex
}

var _ Queue = &InMemoryQueue{}

// NewInMemoryQueue creates a new queue with the given buffer size.
func NewInMemoryQueue(size int) *InMemoryQueue {
	return &InMemoryQueue{
		ch: make(chan interface{}, size),
	}
}

// Enqueue adds an item to the end of the queue.
func (q *InMemoryQueue) Enqueue(item interface{}) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	select {
	case q.ch <- item:
	default:
		return fmt.Errorf("queue is full")
	}
	return nil
}

// ReadAllMessages reads all pending messages in the queue
func (q *InMemoryQueue) ReadAllMessages() ([]interface{}, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	var messages []interface{}
	for len(q.ch) > 0 {
		messages = append(messages, <-q.ch)
	}

	return messages, nil
}

// Size returns the current size of the queue.
func (q *InMemoryQueue) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.ch)
}

// Clear removes all messages from the queue.
func (q *InMemoryQueue) Clear() {
	q.lock.Lock()
	defer q.lock.Unlock()

	for len(q.ch) > 0 {
		<-q.ch
	}
}
