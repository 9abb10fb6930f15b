package scheduler_steal

import (
	"sync"

	"github.com/gaohao-creator/turbojob/errors"
)

// Deque is a mutex-guarded double-ended queue. The owning worker works the
// back; thieves take from the front.
type Deque[T any] struct {
	data    []T
	lock    *sync.Mutex
	retired bool
}

// Get deque length.
func (d *Deque[T]) Len() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return len(d.data)
}

// Get deque is empty.
func (d *Deque[T]) IsEmpty() bool {
	return d.Len() == 0
}

// Push an item to the back.
func (d *Deque[T]) PushBack(e T) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.retired {
		return errors.ErrorWorkerRetired
	}
	d.data = append(d.data, e)
	return nil
}

// Take the most recently pushed item (LIFO).
func (d *Deque[T]) PopBack() (T, bool) {
	var zero T
	d.lock.Lock()
	defer d.lock.Unlock()
	if len(d.data) == 0 {
		return zero, false
	}
	i := len(d.data) - 1
	item := d.data[i]
	d.data[i] = zero
	d.data = d.data[:i]
	return item, true
}

// Take the oldest item (FIFO).
func (d *Deque[T]) PopFront() (T, bool) {
	var zero T
	d.lock.Lock()
	defer d.lock.Unlock()
	if len(d.data) == 0 {
		return zero, false
	}
	item := d.data[0]
	d.data[0] = zero
	d.data = d.data[1:]
	if len(d.data) == 0 {
		d.data = nil // free old array, the next push allocates.
	}
	return item, true
}

// Retire closes the deque for pushes and returns whatever was still queued,
// oldest first.
func (d *Deque[T]) Retire() []T {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.retired = true
	left := d.data
	d.data = nil
	return left
}

// Create a deque with an initial capacity.
func NewDeque[T any](size int) *Deque[T] {
	return &Deque[T]{
		data: make([]T, 0, size),
		lock: &sync.Mutex{},
	}
}
