// Package memory is an in-process Ledger Store. It is safe for concurrent use
// and keeps nothing across restarts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu           sync.RWMutex
	transactions []core.Transaction
	cards        []core.CreditCard
	investments  []core.Investment
	profiles     map[string]core.UserProfile
	adminClaim   string // user id holding the first-admin slot
	now          func() time.Time
}

func New() *Store {
	return &Store{
		profiles: make(map[string]core.UserProfile),
		now:      time.Now,
	}
}

func (s *Store) CreateGroup(ctx context.Context, records []core.Transaction) (core.GroupHandle, error) {
	if err := ctx.Err(); err != nil {
		return core.GroupHandle{}, fmt.Errorf("%w: %w", core.ErrWriteConflict, err)
	}
	prepared, h, err := ledger.PrepareBatch(records)
	if err != nil {
		return core.GroupHandle{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, prepared...)
	return h, nil
}

func (s *Store) CreateSingle(ctx context.Context, record core.Transaction) (string, error) {
	h, err := s.CreateGroup(ctx, []core.Transaction{record})
	if err != nil {
		return "", err
	}
	return h.IDs[0], nil
}

func (s *Store) ListTransactions(_ context.Context, ownerID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	return out, nil
}

func (s *Store) GetGroup(_ context.Context, ownerID, groupID string) (core.InstallmentGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var members []core.Transaction
	for _, t := range s.transactions {
		if t.OwnerID == ownerID && groupID != "" && t.InstallmentGroupID == groupID {
			members = append(members, t)
		}
	}
	if len(members) == 0 {
		return core.InstallmentGroup{}, ledger.NotFound("installment group", groupID)
	}
	return core.NewInstallmentGroup(groupID, members), nil
}

func (s *Store) CreateCreditCard(_ context.Context, card core.CreditCard) (string, error) {
	if err := card.Validate(); err != nil {
		return "", err
	}
	card.ID = uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards = append(s.cards, card)
	return card.ID, nil
}

func (s *Store) ListCreditCards(_ context.Context, ownerID string) ([]core.CreditCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.CreditCard
	for _, c := range s.cards {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) CreateInvestment(_ context.Context, inv core.Investment) (string, error) {
	if err := inv.Validate(); err != nil {
		return "", err
	}
	inv.ID = uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.investments = append(s.investments, inv)
	return inv.ID, nil
}

func (s *Store) ListInvestments(_ context.Context, ownerID string) ([]core.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Investment
	for _, i := range s.investments {
		if i.OwnerID == ownerID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (s *Store) CreateProfile(_ context.Context, p core.UserProfile) (core.UserProfile, error) {
	p.Role = core.RolePending
	if err := p.Validate(); err != nil {
		return core.UserProfile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.ID]; exists {
		return core.UserProfile{}, fmt.Errorf("%w: %w: %s", core.ErrWriteConflict, core.ErrProfileExists, p.ID)
	}
	if s.adminClaim == "" {
		s.adminClaim = p.ID
		p.Role = core.RoleAdmin
	}
	if p.RegistrationDate.IsZero() {
		p.RegistrationDate = s.now().UTC()
	}
	s.profiles[p.ID] = p
	return p, nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (core.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return core.UserProfile{}, ledger.NotFound("user", userID)
	}
	return p, nil
}

func (s *Store) ListProfiles(_ context.Context) ([]core.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegistrationDate.Before(out[j].RegistrationDate) })
	return out, nil
}

func (s *Store) SetRole(_ context.Context, userID string, from, to core.Role) error {
	if err := ledger.CheckRoleChange(from, to); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return ledger.NotFound("user", userID)
	}
	if p.Role != from {
		return ledger.Conflict(userID, from)
	}
	p.Role = to
	s.profiles[userID] = p
	return nil
}

func (s *Store) Close() error { return nil }
