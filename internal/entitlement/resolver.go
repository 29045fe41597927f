// Package entitlement owns subscription roles: registration, checkout,
// admin grants and the features each role unlocks.
package entitlement

import (
	"context"
	"fmt"
	"strings"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/log"
)

type (
	RegistrationRequest struct {
		UserID    string
		Email     string
		FirstName string
		LastName  string
	}

	// Registration is the stored profile plus whether it won the
	// first-administrator claim.
	Registration struct {
		Profile   core.UserProfile
		FirstEver bool
	}

	CheckoutConfirmation struct {
		UserID     string
		TargetPlan core.Role
	}

	AdminGrant struct {
		ActorID    string
		UserID     string
		TargetRole core.Role
	}

	// RoleChange describes an applied transition.
	RoleChange struct {
		Profile core.UserProfile
		From    core.Role
		Trigger core.Trigger
	}
)

// Changed reports whether the role actually moved.
func (c RoleChange) Changed() bool { return c.From != c.Profile.Role }

type Resolver struct {
	store  ledger.ProfileStore
	logger *log.Logger
}

func NewResolver(store ledger.ProfileStore, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default(log.ComponentEntitlement)
	}
	return &Resolver{store: store, logger: logger.WithComponent(log.ComponentEntitlement)}
}

// Register creates the profile. The first profile ever becomes admin; every
// other one starts pending until checkout confirms a plan.
func (r *Resolver) Register(ctx context.Context, req RegistrationRequest) (Registration, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return Registration{}, core.Invalid(core.ErrMissingOwner)
	}
	p, err := r.store.CreateProfile(ctx, core.UserProfile{
		ID:        req.UserID,
		Email:     strings.TrimSpace(req.Email),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      core.RolePending,
	})
	if err != nil {
		return Registration{}, fmt.Errorf("register %s: %w", req.UserID, err)
	}
	reg := Registration{Profile: p, FirstEver: p.Role == core.RoleAdmin}
	r.logger.InfoContext(ctx, "Profile registered",
		log.FieldOwnerID, p.ID,
		log.FieldRoleTo, p.Role,
		"first_ever", reg.FirstEver)
	return reg, nil
}

// ConfirmCheckout applies a paid plan: pending to basico or completo, or
// basico to completo.
func (r *Resolver) ConfirmCheckout(ctx context.Context, c CheckoutConfirmation) (RoleChange, error) {
	p, err := r.store.GetProfile(ctx, c.UserID)
	if err != nil {
		return RoleChange{}, fmt.Errorf("checkout %s: %w", c.UserID, err)
	}
	return r.apply(ctx, p, c.TargetPlan, core.TriggerCheckout)
}

// GrantRole lets an admin promote any user to admin. Granting admin to an
// admin succeeds without a write.
func (r *Resolver) GrantRole(ctx context.Context, g AdminGrant) (RoleChange, error) {
	actor, err := r.store.GetProfile(ctx, g.ActorID)
	if err != nil {
		return RoleChange{}, fmt.Errorf("grant by %s: %w", g.ActorID, err)
	}
	if actor.Role != core.RoleAdmin {
		return RoleChange{}, fmt.Errorf("%w: %s is not an administrator", core.ErrForbidden, g.ActorID)
	}
	p, err := r.store.GetProfile(ctx, g.UserID)
	if err != nil {
		return RoleChange{}, fmt.Errorf("grant to %s: %w", g.UserID, err)
	}
	return r.apply(ctx, p, g.TargetRole, core.TriggerAdminGrant)
}

func (r *Resolver) apply(ctx context.Context, p core.UserProfile, to core.Role, trigger core.Trigger) (RoleChange, error) {
	from := p.Role
	if err := core.ValidateTransition(from, to, trigger); err != nil {
		r.logger.WarnContext(ctx, "Role transition rejected",
			log.NewFields().WithRoleChange(p.ID, string(from), string(to), string(trigger)).WithError(err).ToSlice()...)
		return RoleChange{}, err
	}
	change := RoleChange{From: from, Trigger: trigger}
	if from != to {
		if err := r.store.SetRole(ctx, p.ID, from, to); err != nil {
			return RoleChange{}, fmt.Errorf("set role %s: %w", p.ID, err)
		}
		p.Role = to
	}
	change.Profile = p
	r.logger.InfoContext(ctx, "Role transition applied",
		log.NewFields().WithRoleChange(p.ID, string(from), string(to), string(trigger)).ToSlice()...)
	return change, nil
}

// Capabilities resolves what userID may currently do.
func (r *Resolver) Capabilities(ctx context.Context, userID string) (core.UserProfile, Capabilities, error) {
	p, err := r.store.GetProfile(ctx, userID)
	if err != nil {
		return core.UserProfile{}, Capabilities{}, err
	}
	return p, Features(p.Role), nil
}
