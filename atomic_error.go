package mbaudio

import "sync"

// atomicError keeps the first error reported by a data-flow goroutine.
type atomicError struct {
	err error
	m   sync.Mutex
}

// TryStore records err unless an error is already stored.
// It reports whether err was the first.
func (a *atomicError) TryStore(err error) bool {
	a.m.Lock()
	defer a.m.Unlock()
	if a.err != nil || err == nil {
		return false
	}
	a.err = err
	return true
}

func (a *atomicError) Load() error {
	a.m.Lock()
	defer a.m.Unlock()
	return a.err
}

func (a *atomicError) Reset() {
	a.m.Lock()
	a.err = nil
	a.m.Unlock()
}
