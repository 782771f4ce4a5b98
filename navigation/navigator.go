// Package navigation abstracts the host's page-navigation and user-alert
// surface so the client can force a login or unauthorized redirect without
// knowing about a browser.
package navigation

import "sync"

// Navigator is the client's view of the host navigation surface.
type Navigator interface {
	// Navigate moves the host to the given path.
	Navigate(path string)
	// Current returns the host's current path.
	Current() string
	// Alert shows a blocking message to the user.
	Alert(message string)
}

// Recorder is a Navigator that records calls for inspection. Intended for
// tests and headless embeddings.
type Recorder struct {
	mu      sync.Mutex
	current string
	history []string
	alerts  []string
}

// NewRecorder creates a Recorder positioned at path.
func NewRecorder(path string) *Recorder {
	return &Recorder{current: path}
}

// Navigate records the target and makes it the current path.
func (r *Recorder) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, path)
	r.current = path
}

// Current returns the current path.
func (r *Recorder) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Alert records the message.
func (r *Recorder) Alert(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, message)
}

// History returns all navigation targets in order.
func (r *Recorder) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.history))
	copy(out, r.history)
	return out
}

// Alerts returns all alert messages in order.
func (r *Recorder) Alerts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.alerts))
	copy(out, r.alerts)
	return out
}
