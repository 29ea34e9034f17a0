package portal

import (
	"sync"

	"github.com/ree-portal/agent-onboarding/internal/core/access"
	"github.com/ree-portal/agent-onboarding/internal/core/ports"
)

// Notification is a toast shown to the visitor.
type Notification struct {
	Level   ports.Level `json:"level"`
	Message string      `json:"message"`
}

// Outbox collects what the core wants to show the visitor until the next
// response picks it up.
type Outbox struct {
	mu       sync.Mutex
	notes    []Notification
	redirect access.View
}

func (o *Outbox) Notify(level ports.Level, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notes = append(o.notes, Notification{Level: level, Message: message})
}

// Navigate records the requested view. Only the last request is kept.
func (o *Outbox) Navigate(view access.View) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.redirect = view
}

// Drain returns and clears the pending notifications and navigation.
func (o *Outbox) Drain() ([]Notification, access.View) {
	o.mu.Lock()
	defer o.mu.Unlock()

	notes := o.notes
	if notes == nil {
		notes = []Notification{}
	}
	view := o.redirect
	o.notes = nil
	o.redirect = ""
	return notes, view
}
