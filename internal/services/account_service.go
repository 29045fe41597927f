package services

import (
	"context"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/entitlement"
	"carteira/internal/ledger"
	"carteira/internal/log"
)

// AccountService exposes registration and role changes, announcing every
// applied transition on the event bus.
type AccountService struct {
	resolver  *entitlement.Resolver
	profiles  ledger.ProfileStore
	publisher Publisher
	logger    *log.Logger
}

func NewAccountService(resolver *entitlement.Resolver, profiles ledger.ProfileStore, publisher Publisher, logger *log.Logger) *AccountService {
	if logger == nil {
		logger = log.Default(log.ComponentEntitlement)
	}
	return &AccountService{
		resolver:  resolver,
		profiles:  profiles,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentEntitlement),
	}
}

func (s *AccountService) Register(ctx context.Context, req entitlement.RegistrationRequest) (entitlement.Registration, error) {
	reg, err := s.resolver.Register(ctx, req)
	if err != nil {
		return entitlement.Registration{}, err
	}
	s.announce(ctx, reg.Profile.ID, "", reg.Profile.Role)
	return reg, nil
}

// Me returns the caller's profile and what it unlocks.
func (s *AccountService) Me(ctx context.Context, userID string) (core.UserProfile, entitlement.Capabilities, error) {
	return s.resolver.Capabilities(ctx, userID)
}

func (s *AccountService) ConfirmCheckout(ctx context.Context, c entitlement.CheckoutConfirmation) (entitlement.RoleChange, error) {
	change, err := s.resolver.ConfirmCheckout(ctx, c)
	if err != nil {
		return entitlement.RoleChange{}, err
	}
	if change.Changed() {
		s.announce(ctx, change.Profile.ID, change.From, change.Profile.Role)
	}
	return change, nil
}

func (s *AccountService) GrantRole(ctx context.Context, g entitlement.AdminGrant) (entitlement.RoleChange, error) {
	change, err := s.resolver.GrantRole(ctx, g)
	if err != nil {
		return entitlement.RoleChange{}, err
	}
	if change.Changed() {
		s.announce(ctx, change.Profile.ID, change.From, change.Profile.Role)
	}
	return change, nil
}

// ListUsers is restricted to administrators.
func (s *AccountService) ListUsers(ctx context.Context, actorID string) ([]core.UserProfile, error) {
	if _, err := require(ctx, s.resolver, actorID, entitlement.FeatureAdministration); err != nil {
		return nil, err
	}
	return s.profiles.ListProfiles(ctx)
}

func (s *AccountService) announce(ctx context.Context, userID string, from, to core.Role) {
	if s.publisher == nil {
		return
	}
	ev := amqp.NewRoleChangedEvent(userID, string(from), string(to))
	if err := s.publisher.PublishLedgerEvent(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish role change",
			log.FieldOwnerID, userID,
			log.FieldRoleFrom, from,
			log.FieldRoleTo, to,
			log.FieldError, err)
	}
}
