// Package services orchestrates the ledger core for the outer surfaces:
// entitlement checks, commits, event publishing and cached read models.
package services

import (
	"context"
	"fmt"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/entitlement"
)

// Publisher emits ledger events after a commit. *amqp.Client implements it.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

var _ Publisher = (*amqp.Client)(nil)

// capabilityResolver is the slice of entitlement.Resolver the services need.
type capabilityResolver interface {
	Capabilities(ctx context.Context, userID string) (core.UserProfile, entitlement.Capabilities, error)
}

// require returns the caller's capabilities, or ErrForbidden when f is not
// unlocked by their role.
func require(ctx context.Context, r capabilityResolver, userID string, f entitlement.Feature) (entitlement.Capabilities, error) {
	p, caps, err := r.Capabilities(ctx, userID)
	if err != nil {
		return entitlement.Capabilities{}, err
	}
	if !caps.Allows(f) {
		return caps, fmt.Errorf("%w: role %s does not include %s", core.ErrForbidden, p.Role, f)
	}
	return caps, nil
}
