package core

import (
	"fmt"
	"strings"
)

// Role is the subscription state of a user. The set is closed.
type Role string

const (
	RolePending  Role = "pending"
	RoleBasico   Role = "basico"
	RoleCompleto Role = "completo"
	RoleAdmin    Role = "admin"
)

// Trigger names the event that requests a role change.
type Trigger string

const (
	TriggerCheckout   Trigger = "checkout"
	TriggerAdminGrant Trigger = "admin_grant"
)

var allRoles = []Role{RolePending, RoleBasico, RoleCompleto, RoleAdmin}

// transitions lists, per trigger, the legal target roles for each source role.
var transitions = map[Trigger]map[Role][]Role{
	TriggerCheckout: {
		RolePending: {RoleBasico, RoleCompleto},
		RoleBasico:  {RoleCompleto},
	},
	TriggerAdminGrant: {
		RolePending:  {RoleAdmin},
		RoleBasico:   {RoleAdmin},
		RoleCompleto: {RoleAdmin},
		RoleAdmin:    {RoleAdmin},
	},
}

func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %w: %q", ErrValidation, ErrInvalidRole, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	for _, v := range allRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ValidateTransition reports whether trigger may move a profile from one
// role to another.
func ValidateTransition(from, to Role, trigger Trigger) error {
	if !from.Valid() || !to.Valid() {
		return invalid(ErrInvalidRole)
	}
	for _, target := range transitions[trigger][from] {
		if target == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s via %s", ErrInvalidTransition, from, to, trigger)
}

// CanTransition reports whether any trigger allows from -> to.
func CanTransition(from, to Role) bool {
	for trigger := range transitions {
		if ValidateTransition(from, to, trigger) == nil {
			return true
		}
	}
	return false
}
