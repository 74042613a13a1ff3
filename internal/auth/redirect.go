package auth

import "sync"

// Redirector records navigation requests for whichever front end is
// running. The HTTP server reports the pending route in its responses
// and the terminal view switches screens on it.
type Redirector struct {
	mu    sync.Mutex
	route string
	C     chan string
}

// NewRedirector creates a Redirector whose channel holds one route
func NewRedirector() *Redirector {
	return &Redirector{C: make(chan string, 1)}
}

// Navigate records route and offers it on C without blocking
func (r *Redirector) Navigate(route string) {
	r.mu.Lock()
	r.route = route
	r.mu.Unlock()

	select {
	case r.C <- route:
	default:
	}
}

// Take returns the pending route and clears it
func (r *Redirector) Take() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	route := r.route
	r.route = ""
	return route, route != ""
}
