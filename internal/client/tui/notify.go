package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// sender is the one method of *tea.Program the refresher needs.
type sender interface {
	Send(tea.Msg)
}

// Refresher forwards session/store change notifications to the running
// program as RefreshMsg.
//
// WHY NOT A PLAIN VARIABLE?
// The session and store start resolving as soon as they are constructed,
// which is BEFORE the tea.Program exists — their first notifications can
// fire from a background goroutine while main is still wiring things up.
// Reading an unguarded `program` variable there would race its assignment,
// so the target lives behind a mutex: notifications before Attach are
// dropped (the program's first render reads current state anyway), and
// everything after Attach is delivered.
type Refresher struct {
	mu     sync.Mutex
	target sender
}

// Attach sets the program that future notifications are delivered to.
func (r *Refresher) Attach(p sender) {
	r.mu.Lock()
	r.target = p
	r.mu.Unlock()
}

// Notify sends a RefreshMsg to the attached program, if there is one.
// Safe to call from any goroutine.
func (r *Refresher) Notify() {
	r.mu.Lock()
	t := r.target
	r.mu.Unlock()
	if t != nil {
		t.Send(RefreshMsg{})
	}
}
