package infra

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// goroutineID parses the numeric goroutine id out of the first
// runtime.Stack header line, i.e. "goroutine 18 [running]:".
// There is no public runtime API for it.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if idx := bytes.IndexByte(header, ' '); idx > 0 {
		id, err := strconv.ParseInt(string(header[:idx]), 10, 64)
		if err == nil {
			return id
		}
	}
	// impossible run to here
	panic( /* debug assertion */ "[infra] malformed goroutine stack header")
}

// ReentrantLock is a coarse exclusive lock that the owning goroutine
// may acquire again while it already holds it. Acquire and release
// must be strictly paired; the lock is handed to the next waiter only
// when the owner's depth drops back to zero.
//
// It serializes multi-call sequences (iteration, capture-remove-reseek)
// over a structure whose single operations also lock internally.
type ReentrantLock struct {
	mu    sync.Mutex
	owner atomic.Int64
	depth int32
}

func (l *ReentrantLock) Lock() {
	gid := goroutineID()
	if l.owner.Load() == gid {
		l.depth++
		return
	}
	l.mu.Lock()
	l.owner.Store(gid)
	l.depth = 1
}

func (l *ReentrantLock) Unlock() {
	if l.owner.Load() != goroutineID() {
		panic("[infra] reentrant lock released by a goroutine that does not own it")
	}
	l.depth--
	if l.depth == 0 {
		l.owner.Store(0)
		l.mu.Unlock()
	}
}
