package syncutil

// Release runs a cleanup function at most once, no matter how many callers
// ask for it, and hands every caller the result of that single run.
type Release struct {
	fn   func() error
	err  error
	mu   Mutex
	done bool
}

// NewRelease wraps fn.
func NewRelease(fn func() error) *Release {
	return &Release{fn: fn}
}

// Do runs the cleanup on the first call.
func (r *Release) Do() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return r.err
	}
	r.done = true
	if r.fn != nil {
		r.err = r.fn()
	}
	return r.err
}

// Done reports whether the cleanup has run.
func (r *Release) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
