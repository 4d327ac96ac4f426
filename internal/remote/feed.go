package remote

import "sync"

// FeedQueue is a Feed that coalesces pending snapshots per collection, so a
// slow consumer always receives the newest state of each collection and a
// producer never blocks on it.
type FeedQueue struct {
	out    chan Snapshot
	notify chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	pending map[Collection]Snapshot
	latest  map[Collection]Revision
	order   []Collection
	closed  bool
}

// NewFeedQueue creates a queue and starts its delivery goroutine.
func NewFeedQueue() *FeedQueue {
	q := &FeedQueue{
		out:     make(chan Snapshot),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		pending: make(map[Collection]Snapshot),
		latest:  make(map[Collection]Revision),
	}
	go q.run()
	return q
}

// Push queues a snapshot, replacing any undelivered snapshot of the same
// collection. Snapshots older than one already pushed are dropped.
func (q *FeedQueue) Push(s Snapshot) {
	q.mu.Lock()
	if q.closed || s.Revision < q.latest[s.Collection] {
		q.mu.Unlock()
		return
	}
	q.latest[s.Collection] = s.Revision
	if _, ok := q.pending[s.Collection]; !ok {
		q.order = append(q.order, s.Collection)
	}
	q.pending[s.Collection] = s
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Events implements Feed.
func (q *FeedQueue) Events() <-chan Snapshot {
	return q.out
}

// Done is closed when the queue is closed.
func (q *FeedQueue) Done() <-chan struct{} {
	return q.done
}

// Close implements Feed. It is safe to call more than once.
func (q *FeedQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}

func (q *FeedQueue) next() (Snapshot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		return Snapshot{}, false
	}
	c := q.order[0]
	q.order = q.order[1:]
	s := q.pending[c]
	delete(q.pending, c)
	return s, true
}

func (q *FeedQueue) run() {
	defer close(q.out)
	for {
		select {
		case <-q.done:
			return
		case <-q.notify:
		}

		for {
			s, ok := q.next()
			if !ok {
				break
			}
			select {
			case q.out <- s:
			case <-q.done:
				return
			}
		}
	}
}

var _ Feed = (*FeedQueue)(nil)
