package jobs

import "sync"

// ProgressFeed is the bounded conduit between the orchestrator's progress
// sink and the job tracker. Messages stay ordered; when the buffer is full
// the oldest message is dropped so publishing never blocks collection.
type ProgressFeed struct {
	mu     sync.Mutex
	ch     chan string
	closed bool
}

const defaultFeedCapacity = 128

func NewProgressFeed(capacity int) *ProgressFeed {
	if capacity <= 0 {
		capacity = defaultFeedCapacity
	}
	return &ProgressFeed{ch: make(chan string, capacity)}
}

// Publish enqueues a message, evicting the oldest buffered one if needed.
// Safe to call from multiple goroutines; a no-op after Close.
func (f *ProgressFeed) Publish(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for {
		select {
		case f.ch <- message:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// Sink adapts the feed to the orchestrator's progress callback type.
func (f *ProgressFeed) Sink() func(string) {
	return f.Publish
}

// Messages is the consumer side; it is closed by Close.
func (f *ProgressFeed) Messages() <-chan string {
	return f.ch
}

// Close ends the feed. Buffered messages remain readable.
func (f *ProgressFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}

// Forward drains the feed into the tracker's log for the given job. It
// returns when the feed is closed; run it on its own goroutine.
func Forward(feed *ProgressFeed, tracker *Tracker, id string) {
	for msg := range feed.Messages() {
		tracker.Record(id, msg)
	}
}
