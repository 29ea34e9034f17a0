// Package access decides which view a visitor may see. It is the only place
// that knows the role/status redirect rules; every view asks Resolve.
package access

import "github.com/ree-portal/agent-onboarding/internal/core/domain"

// View is one of the fixed pages of the portal.
type View string

const (
	ViewLanding        View = "landing"
	ViewAuth           View = "auth"
	ViewAdminDashboard View = "admin_dashboard"
	ViewAgentDashboard View = "agent_dashboard"
	ViewPending        View = "pending_approval"
)

var viewPaths = map[View]string{
	ViewLanding:        "/",
	ViewAuth:           "/auth",
	ViewAdminDashboard: "/admin-dashboard",
	ViewAgentDashboard: "/agent-dashboard",
	ViewPending:        "/pending",
}

// Path returns the URL path that renders v.
func (v View) Path() string {
	if p, ok := viewPaths[v]; ok {
		return p
	}
	return "/"
}

// Views lists every view in precedence order.
func Views() []View {
	return []View{ViewLanding, ViewAuth, ViewAdminDashboard, ViewAgentDashboard, ViewPending}
}

// State is the input of the access rules.
type State struct {
	Authenticated bool
	// Resolved is true once the profile of the authenticated user is known.
	Resolved bool
	Role     domain.Role
	Status   domain.Status
}

// StateOf projects a store snapshot onto the access rules.
func StateOf(s domain.Snapshot) State {
	st := State{Authenticated: s.Authenticated()}
	if st.Authenticated && s.Profile != nil && s.Profile.ID == s.UserID() {
		st.Resolved = true
		st.Role = s.Profile.Role
		st.Status = s.Profile.Status
	}
	return st
}

// Decision is the outcome of visiting a view.
type Decision struct {
	Allowed  bool
	Redirect View // set when Allowed is false
}

// Resolve evaluates whether view is reachable in st and, if not, where to go.
func Resolve(view View, st State) Decision {
	if reachable(view, st) {
		return Decision{Allowed: true}
	}
	return Decision{Redirect: Target(st)}
}

// Target is the canonical destination for st.
func Target(st State) View {
	switch {
	case !st.Authenticated || !st.Resolved:
		return ViewAuth
	case st.Role == domain.RoleSuperAdmin:
		return ViewAdminDashboard
	case st.Role == domain.RoleAgent && st.Status == domain.StatusApproved:
		return ViewAgentDashboard
	case st.Role == domain.RoleAgent:
		// rejected lands here too; the pending view shows the actual status.
		return ViewPending
	default:
		return ViewAuth
	}
}

func reachable(view View, st State) bool {
	ready := st.Authenticated && st.Resolved
	switch view {
	case ViewLanding:
		return !ready
	case ViewAuth:
		return !ready || !st.Role.Valid()
	case ViewAdminDashboard:
		return ready && st.Role == domain.RoleSuperAdmin
	case ViewAgentDashboard:
		return ready && st.Role == domain.RoleAgent && st.Status == domain.StatusApproved
	case ViewPending:
		return ready && st.Role == domain.RoleAgent && st.Status != domain.StatusApproved
	}
	return false
}
