package thumbnail

import "sync"

// Thumbnail is a fetched but not yet decoded thumbnail image.
type Thumbnail struct {
	ID   string
	Data []byte
}

// Queue hands fetched thumbnails from workers to the consumer. Thumbnails
// pushed by a single worker are drained in the order they were pushed.
type Queue struct {
	mutex sync.Mutex
	items []Thumbnail
}

func NewQueue() *Queue {
	return &Queue{
		items: make([]Thumbnail, 0),
	}
}

func (q *Queue) Push(thumbnail Thumbnail) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.items = append(q.items, thumbnail)
}

// Drain removes and returns all pending thumbnails.
func (q *Queue) Drain() []Thumbnail {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	items := q.items
	q.items = make([]Thumbnail, 0, len(items))
	return items
}

func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}
