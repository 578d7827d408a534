package sim

// Store is a FIFO holding area with optional bounded capacity.
//
// Put suspends the calling process while the store is full and Get suspends
// while it is empty; waiters are served in arrival order. The Try variants
// never suspend.
type Store[T any] struct {
	env      *Env
	capacity int
	items    []T
	putters  []*putWaiter[T]
	getters  []*getWaiter[T]
}

type putWaiter[T any] struct {
	p    *Proc
	item T
}

type getWaiter[T any] struct {
	p    *Proc
	item T
}

// NewStore creates a store. A capacity of zero or less means unbounded.
func NewStore[T any](env *Env, capacity int) *Store[T] {
	return &Store[T]{env: env, capacity: capacity}
}

// Cap returns the capacity, or 0 if the store is unbounded.
func (s *Store[T]) Cap() int {
	if s.capacity <= 0 {
		return 0
	}
	return s.capacity
}

// Len returns the number of stored items.
func (s *Store[T]) Len() int { return len(s.items) }

// IsEmpty reports whether the store holds no items.
func (s *Store[T]) IsEmpty() bool { return len(s.items) == 0 }

// IsFull reports whether a Put would suspend. Unbounded stores are never full.
func (s *Store[T]) IsFull() bool {
	return s.capacity > 0 && len(s.items) >= s.capacity
}

// Items returns a copy of the stored items, head first.
func (s *Store[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Peek returns the head item without removing it.
func (s *Store[T]) Peek() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	return s.items[0], true
}

// Put appends item, suspending p until there is room.
func (s *Store[T]) Put(p *Proc, item T) error {
	if s.TryPut(item) {
		return nil
	}
	w := &putWaiter[T]{p: p, item: item}
	s.putters = append(s.putters, w)
	return p.park(func() { s.putters = removeWaiter(s.putters, w) })
}

// TryPut appends item if there is room and reports whether it did.
func (s *Store[T]) TryPut(item T) bool {
	if len(s.getters) > 0 {
		w := s.getters[0]
		s.getters = s.getters[1:]
		w.item = item
		s.env.wakeLater(w.p, nil)
		return true
	}
	if s.IsFull() {
		return false
	}
	s.items = append(s.items, item)
	return true
}

// Requeue puts item back at the head of the store without suspending. It is
// meant for returning an item that was just taken out; it reports false if
// the store has no room.
func (s *Store[T]) Requeue(item T) bool {
	if len(s.getters) > 0 {
		return s.TryPut(item)
	}
	if s.IsFull() {
		return false
	}
	s.items = append([]T{item}, s.items...)
	return true
}

// Get removes and returns the head item, suspending p until one is available.
func (s *Store[T]) Get(p *Proc) (T, error) {
	if item, ok := s.TryGet(); ok {
		return item, nil
	}
	w := &getWaiter[T]{p: p}
	s.getters = append(s.getters, w)
	if err := p.park(func() { s.getters = removeWaiter(s.getters, w) }); err != nil {
		var zero T
		return zero, err
	}
	return w.item, nil
}

// TryGet removes and returns the head item if there is one.
func (s *Store[T]) TryGet() (T, bool) {
	var zero T
	if len(s.items) == 0 {
		return zero, false
	}
	item := s.items[0]
	s.items[0] = zero
	s.items = s.items[1:]
	s.admitPutter()
	return item, true
}

// Remove takes out the first item matching fn, wherever it sits.
func (s *Store[T]) Remove(fn func(T) bool) (T, bool) {
	var zero T
	for i, item := range s.items {
		if fn(item) {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			s.admitPutter()
			return item, true
		}
	}
	return zero, false
}

func (s *Store[T]) admitPutter() {
	if len(s.putters) == 0 || s.IsFull() {
		return
	}
	w := s.putters[0]
	s.putters = s.putters[1:]
	s.items = append(s.items, w.item)
	s.env.wakeLater(w.p, nil)
}

func removeWaiter[W any](waiters []*W, target *W) []*W {
	for i, w := range waiters {
		if w == target {
			return append(waiters[:i:i], waiters[i+1:]...)
		}
	}
	return waiters
}
