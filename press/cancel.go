package press

import "sync"

// cancelRegistry holds cancellation requests for in-flight jobs. The
// supervisor polls it at progress checkpoints; requests against unknown
// job IDs are harmless and get cleared when the job finishes.
type cancelRegistry struct {
	mu  sync.Mutex
	set map[string]struct{}
}

func (r *cancelRegistry) request(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.set == nil {
		r.set = make(map[string]struct{})
	}
	r.set[jobID] = struct{}{}
}

func (r *cancelRegistry) requested(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.set[jobID]
	return ok
}

func (r *cancelRegistry) clear(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.set, jobID)
}
