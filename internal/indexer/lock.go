package indexer

import "sync/atomic"

// runLock serializes indexing runs without blocking: a second caller gets an
// immediate ErrIndexInProgress instead of queueing behind a long run.
type runLock struct {
	state atomic.Int32
}

func (l *runLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release must only be called after a successful TryAcquire.
func (l *runLock) Release() {
	l.state.Store(0)
}
