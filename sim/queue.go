// Implements the Store, a FIFO buffer of discrete item handles (batches,
// orders) with blocking Get and non-blocking Put.

package sim

import (
	"fmt"
	"strings"
)

type storeGetter[T any] struct {
	proc *Process
	k    func(T)
}

// Store is an unbounded FIFO queue of items. Put appends to the tail and
// hands the item straight to the oldest waiting getter, if any; Get suspends
// the caller while the queue is empty.
type Store[T any] struct {
	Name string

	sim     *Simulator
	items   []T
	getters []storeGetter[T]
	puts    int64
	gets    int64
}

// NewStore creates an empty store bound to sim.
func NewStore[T any](sim *Simulator, name string) *Store[T] {
	return &Store[T]{Name: name, sim: sim}
}

// Put adds an item to the back of the store. It never blocks.
func (s *Store[T]) Put(item T) {
	s.puts++
	if len(s.getters) > 0 {
		g := s.getters[0]
		s.getters = s.getters[1:]
		s.gets++
		g.proc.wake(func() { g.k(item) })
		return
	}
	s.items = append(s.items, item)
}

// Get removes the item at the front of the store and passes it to k. If the
// store is empty the process suspends until a Put arrives; getters are
// served in the order they called Get.
func (s *Store[T]) Get(p *Process, k func(T)) {
	if p == nil || k == nil {
		panic(fmt.Sprintf("Store(%s).Get: process and continuation must not be nil", s.Name))
	}
	if len(s.items) > 0 {
		item := s.items[0]
		var zero T
		s.items[0] = zero
		s.items = s.items[1:]
		s.gets++
		p.wake(func() { k(item) })
		return
	}
	p.block(s.Name)
	s.getters = append(s.getters, storeGetter[T]{proc: p, k: k})
}

// Len returns the number of items waiting in the store.
func (s *Store[T]) Len() int {
	return len(s.items)
}

// Waiting returns the number of processes blocked in Get.
func (s *Store[T]) Waiting() int {
	return len(s.getters)
}

// Peek returns the item at the front of the store without removing it.
// The boolean is false if the store is empty.
func (s *Store[T]) Peek() (T, bool) {
	if len(s.items) == 0 {
		var zero T
		return zero, false
	}
	return s.items[0], true
}

// Items returns the queued items in FIFO order.
// The returned slice is the store's internal storage: callers MUST NOT
// append to or reslice it.
func (s *Store[T]) Items() []T {
	return s.items
}

// Counts returns the total number of puts and gets served.
func (s *Store[T]) Counts() (puts, gets int64) {
	return s.puts, s.gets
}

func (s *Store[T]) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteString("[")
	for i, val := range s.items {
		sb.WriteString(fmt.Sprint(val))
		if i < len(s.items)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
