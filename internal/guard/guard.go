// Package guard decides what a role-gated view shows for a session.
package guard

import (
	"github.com/npezzotti/go-fellowship/internal/types"
)

type Outcome int

const (
	// Loading shows a neutral placeholder and nothing else.
	Loading Outcome = iota
	// Redirect sends the visitor to the sign-in view.
	Redirect
	// Denied shows an access-denied message in place of the view.
	Denied
	// Render shows the view.
	Render
)

func (o Outcome) String() string {
	switch o {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case Denied:
		return "denied"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// Decide gates a view requiring requiredRole. An empty requiredRole admits
// any signed-in user and the admin role satisfies every requirement.
func Decide(loading bool, user *types.User, role, requiredRole string) Outcome {
	if loading {
		return Loading
	}
	if user == nil {
		return Redirect
	}
	if requiredRole != "" && role != requiredRole && role != types.RoleAdmin {
		return Denied
	}
	return Render
}
