package worker

import (
	"context"
	"sync"
)

// Registry tracks running batch goroutines so they can be canceled
// cooperatively. Entries remove themselves when the batch finishes.
type Registry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewRegistry() *Registry {
	return &Registry{
		cancels: make(map[string]context.CancelFunc),
	}
}

// Launch starts the batch on its own goroutine with a cancellable
// context. The caller returns immediately; progress is observable only
// through the progress hub and the batch record.
func (r *Registry) Launch(worker *SendWorker, job BatchJob, dialer Dialer) {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.cancels[job.ID] = cancel
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.cancels, job.ID)
			r.mu.Unlock()
			cancel()
		}()
		worker.Run(ctx, job, dialer)
	}()
}

// Cancel requests cancellation of a running batch. It returns false
// when no batch with that id is running.
func (r *Registry) Cancel(batchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancel, ok := r.cancels[batchID]
	if !ok {
		return false
	}
	cancel()
	return true
}

// Running reports whether the batch currently has a live goroutine.
func (r *Registry) Running(batchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[batchID]
	return ok
}
