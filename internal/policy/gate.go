// Package policy decides what a principal may do with a resource,
// independently of the HTTP layer so rules are testable in isolation.
// The Gate is a central registry of per-resource policies.
package policy

import (
	"errors"

	"github.com/phara0n/ecarv1/internal/models"
)

// Action describes the kind of operation a principal wants to perform.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

// Principal is the authenticated subject of a request.
type Principal struct {
	ID   uint
	Role models.Role
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoPolicyDefined = errors.New("no policy defined for resource type")
)

// Policy defines authorization rules for one resource type.
// For list/create, resource may be nil (role-only check).
type Policy interface {
	Can(p Principal, action Action, resource any) bool
}

// Gate is the central authorization checkpoint.
type Gate struct {
	policies map[string]Policy
}

func NewGate() *Gate {
	return &Gate{policies: make(map[string]Policy)}
}

// Register adds a policy for a resource type (e.g. "invoice").
// Overwrites any existing policy for that type.
func (g *Gate) Register(resourceType string, p Policy) {
	g.policies[resourceType] = p
}

// Authorize returns ErrUnauthorized when denied and ErrNoPolicyDefined
// when the resource type has no registered policy.
func (g *Gate) Authorize(principal Principal, action Action, resourceType string, resource any) error {
	if principal.ID == 0 {
		return ErrUnauthorized
	}
	p, ok := g.policies[resourceType]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(principal, action, resource) {
		return ErrUnauthorized
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate) Can(principal Principal, action Action, resourceType string, resource any) bool {
	return g.Authorize(principal, action, resourceType, resource) == nil
}

// Default returns a gate with every garage resource policy registered.
func Default() *Gate {
	g := NewGate()
	g.Register("customer", CustomerPolicy{})
	g.Register("vehicle", VehiclePolicy{})
	g.Register("repair", RepairPolicy{})
	g.Register("invoice", InvoicePolicy{})
	return g
}
