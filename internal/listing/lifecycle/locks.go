package lifecycle

import "sync"

// orderLocks serialises work on one buy row. Entries are dropped once no
// caller holds or waits for them.
type orderLocks struct {
	mu    sync.Mutex
	locks map[uint]*orderLock
}

type orderLock struct {
	sync.Mutex
	refs int
}

// lock blocks until id is free and returns its unlock func.
func (l *orderLocks) lock(id uint) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uint]*orderLock)
	}
	ol, ok := l.locks[id]
	if !ok {
		ol = &orderLock{}
		l.locks[id] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.Lock()
	return func() {
		ol.Unlock()
		l.mu.Lock()
		if ol.refs--; ol.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
