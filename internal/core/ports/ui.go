package ports

import "github.com/ree-portal/agent-onboarding/internal/core/access"

// Level classifies a user-visible notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier surfaces one message to the user (a toast).
type Notifier interface {
	Notify(level Level, message string)
}

// Navigator moves the user to another view.
type Navigator interface {
	Navigate(view access.View)
}
