package queue

// Queue represents a basic message queue.
type Queue interface {
	Enqueue(item interface{}) error
	ReadAllMessages() ([]interface{}, error)
	Size() int
	Clear()
}
