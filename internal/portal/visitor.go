package portal

import (
	"sync/atomic"
	"time"

	"github.com/ree-portal/agent-onboarding/internal/core/service"
)

// Visitor is everything one browser client owns.
type Visitor struct {
	ID      string
	Store   *service.SessionStore
	Receipt *service.ReceiptSlot
	Board   *service.AgentBoard
	Outbox  *Outbox

	lastSeen atomic.Int64
}

func (v *Visitor) touch(now time.Time) {
	v.lastSeen.Store(now.UnixNano())
}

func (v *Visitor) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, v.lastSeen.Load()))
}
