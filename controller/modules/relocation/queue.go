package relocation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// QueueBucket holds relocations waiting for the robot.
const QueueBucket = "relocation_queue"

// Request is a queued relocation.
type Request struct {
	ID   string `json:"id"`
	From int    `json:"from"`
	To   int    `json:"to"`
	Time int64  `json:"ts"`
}

func (r Request) touches(pos ...int) bool {
	for _, p := range pos {
		if r.From == p || r.To == p {
			return true
		}
	}
	return false
}

// storeIface is the minimal subset of the controller store the queue needs.
type storeIface interface {
	List(bucket string, fn func(string, []byte) error) error
	Create(bucket string, fn func(string) interface{}) error
	Delete(bucket, id string) error
}

// Queue is a persistent FIFO of relocation requests drained by one worker.
type Queue struct {
	store   storeIface
	mu      sync.Mutex
	cond    *sync.Cond
	current *Request
	closed  bool
	now     func() time.Time
}

// NewQueue returns a queue persisted in store.
func NewQueue(store storeIface) *Queue {
	q := &Queue{store: store, now: time.Now}
	q.cond = sync.NewCond(&q.mu)
	return q
}

var errFound = errors.New("found")

// Add enqueues from->to unless one of the two positions already belongs to
// a queued or running request.
func (q *Queue) Add(from, to int) (Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current != nil && q.current.touches(from, to) {
		return Request{}, fmt.Errorf("%w: %d->%d overlaps running %d->%d",
			ErrQueued, from, to, q.current.From, q.current.To)
	}
	err := q.store.List(QueueBucket, func(_ string, v []byte) error {
		var r Request
		if err := json.Unmarshal(v, &r); err == nil && r.touches(from, to) {
			return errFound
		}
		return nil
	})
	switch {
	case errors.Is(err, errFound):
		return Request{}, fmt.Errorf("%w: %d->%d", ErrQueued, from, to)
	case err != nil:
		return Request{}, err
	}

	req := Request{From: from, To: to, Time: q.now().UnixNano()}
	fn := func(id string) interface{} {
		req.ID = id
		return &req
	}
	if err := q.store.Create(QueueBucket, fn); err != nil {
		return Request{}, err
	}
	queueDepth.Inc()
	q.cond.Signal()
	return req, nil
}

// Remove cancels a queued request. A running request cannot be cancelled.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current != nil && q.current.ID == id {
		return fmt.Errorf("%w: %s", ErrRunning, id)
	}
	found := false
	_ = q.store.List(QueueBucket, func(k string, _ []byte) error {
		if k == id {
			found = true
			return errFound
		}
		return nil
	})
	if !found {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, id)
	}
	if err := q.store.Delete(QueueBucket, id); err != nil {
		return err
	}
	queueDepth.Dec()
	return nil
}

// List returns pending requests oldest first.
func (q *Queue) List() ([]Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending()
}

// Current returns the request being executed, if any.
func (q *Queue) Current() *Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return nil
	}
	r := *q.current
	return &r
}

// pending must be called with q.mu held.
func (q *Queue) pending() ([]Request, error) {
	reqs := []Request{}
	if err := q.store.List(QueueBucket, func(_ string, v []byte) error {
		var r Request
		if err := json.Unmarshal(v, &r); err == nil {
			reqs = append(reqs, r)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].Time != reqs[j].Time {
			return reqs[i].Time < reqs[j].Time
		}
		a, _ := strconv.Atoi(reqs[i].ID)
		b, _ := strconv.Atoi(reqs[j].ID)
		return a < b
	})
	return reqs, nil
}

// Process runs worker for each request in order, blocking while the queue
// is empty. It returns once Close is called.
func (q *Queue) Process(worker func(Request)) {
	for {
		q.mu.Lock()
		var next *Request
		for !q.closed {
			reqs, err := q.pending()
			if err == nil && len(reqs) > 0 {
				next = &reqs[0]
				break
			}
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		_ = q.store.Delete(QueueBucket, next.ID)
		queueDepth.Dec()
		q.current = next
		q.mu.Unlock()

		worker(*next)

		q.mu.Lock()
		q.current = nil
		q.mu.Unlock()
	}
}

func (q *Queue) open() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = false
	if reqs, err := q.pending(); err == nil {
		queueDepth.Set(float64(len(reqs)))
	}
}

// Close wakes the worker and makes Process return. Queued requests stay in
// the store and are picked up on the next start.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
