package eventbus

import (
	"sync"

	"github.com/gammazero/deque"
)

// Bus fans every published value out to all current subscribers.
// Each subscriber sees values in publish order; nothing is replayed to late subscribers.
type Bus[T any] struct {
	stopCh    chan struct{}
	stopOnce  sync.Once
	publishCh chan T
	subCh     chan *Subscription[T]
	unsubCh   chan *Subscription[T]
}

func New[T any]() *Bus[T] {
	b := &Bus[T]{
		stopCh:    make(chan struct{}),
		publishCh: make(chan T),
		subCh:     make(chan *Subscription[T]),
		unsubCh:   make(chan *Subscription[T]),
	}
	go b.start()
	return b
}

func (b *Bus[T]) start() {
	subs := map[*Subscription[T]]struct{}{}
	for {
		select {
		case <-b.stopCh:
			for s := range subs {
				s.close()
			}
			return
		case s := <-b.subCh:
			subs[s] = struct{}{}
		case s := <-b.unsubCh:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				s.close()
			}
		case msg := <-b.publishCh:
			for s := range subs {
				s.push(msg)
			}
		}
	}
}

// Publish hands v to every subscriber. It never waits on a slow consumer.
// Publishing on a closed bus is a no-op.
func (b *Bus[T]) Publish(v T) {
	if b.closed() {
		return
	}
	select {
	case b.publishCh <- v:
	case <-b.stopCh:
	}
}

// Subscribe returns a subscription that receives every value published after it returns.
func (b *Bus[T]) Subscribe() *Subscription[T] {
	s := newSubscription[T]()
	if b.closed() {
		s.close()
		return s
	}
	select {
	case b.subCh <- s:
	case <-b.stopCh:
		s.close()
	}
	return s
}

// Unsubscribe stops delivery and closes s.C().
func (b *Bus[T]) Unsubscribe(s *Subscription[T]) {
	select {
	case b.unsubCh <- s:
	case <-b.stopCh:
	}
}

func (b *Bus[T]) closed() bool {
	select {
	case <-b.stopCh:
		return true
	default:
		return false
	}
}

// Close closes every subscription. Further publishes are dropped.
func (b *Bus[T]) Close() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscription buffers values in an unbounded queue and feeds them to C().
type Subscription[T any] struct {
	mu     sync.Mutex
	queue  deque.Deque[T]
	closed bool
	signal chan struct{}
	done   chan struct{}
	out    chan T
}

func newSubscription[T any]() *Subscription[T] {
	s := &Subscription[T]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan T),
	}
	go s.pump()
	return s
}

// C delivers values in publish order and is closed on unsubscribe.
func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Backlog is the number of values waiting to be received.
func (s *Subscription[T]) Backlog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue.PushBack(v)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		for s.queue.Len() == 0 && !s.closed {
			s.mu.Unlock()
			<-s.signal
			s.mu.Lock()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		v := s.queue.PopFront()
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription[T]) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue.Clear()
	s.mu.Unlock()

	close(s.done)
	select {
	case s.signal <- struct{}{}:
	default:
	}
}
