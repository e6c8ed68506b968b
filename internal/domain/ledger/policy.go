package ledger

import "workhours/internal/domain/auth"

// Actor is the identity performing an operation.
type Actor struct {
	EmployeeID string
	Role       string
}

func ActorFrom(user auth.UserContext) Actor {
	return Actor{EmployeeID: user.EmployeeID, Role: user.Role}
}

func (a Actor) IsAdmin() bool {
	return a.Role == auth.RoleAdmin
}

func (a Actor) Authenticated() bool {
	return a.EmployeeID != "" && auth.ValidRole(a.Role)
}

// CanAccess allows administrators everything and everyone else only what
// they own.
func CanAccess(actor Actor, ownerEmployeeID string) bool {
	if !actor.Authenticated() {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	return ownerEmployeeID != "" && actor.EmployeeID == ownerEmployeeID
}
