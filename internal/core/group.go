package core

import (
	"fmt"
	"sort"
)

// InstallmentGroup is a purchase split into monthly installments. It is
// created and persisted as one unit and never patched afterwards.
type InstallmentGroup struct {
	ID      string
	Total   Money // the original signed amount
	Members []Transaction
}

// NewInstallmentGroup wraps records that were read back from storage,
// ordering them by installment index. Total is taken from their sum.
func NewInstallmentGroup(id string, records []Transaction) InstallmentGroup {
	members := make([]Transaction, len(records))
	copy(members, records)
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].InstallmentIndex < members[j].InstallmentIndex
	})
	g := InstallmentGroup{ID: id, Members: members}
	g.Total = g.Sum()
	return g
}

func (g InstallmentGroup) Sum() Money {
	var s Money
	for _, m := range g.Members {
		s = s.Add(m.Amount)
	}
	return s
}

func (g InstallmentGroup) Len() int { return len(g.Members) }

// Validate checks every member and the invariants that only make sense for
// the set as a whole.
func (g InstallmentGroup) Validate() error {
	if len(g.Members) == 0 {
		return invalid(ErrEmptyBatch)
	}
	if err := validateMembers(g.Members); err != nil {
		return err
	}
	first := g.Members[0]
	if g.ID != "" && first.InstallmentGroupID != "" && first.InstallmentGroupID != g.ID {
		return invalid(ErrGroupMismatch)
	}
	if g.Sum() != g.Total {
		return fmt.Errorf("%w: %w: got %s want %s", ErrValidation, ErrGroupSum, g.Sum(), g.Total)
	}
	return nil
}

// ValidateBatch checks records about to be committed together. A batch of
// one is a plain record; larger batches must form a well-shaped group.
func ValidateBatch(records []Transaction) error {
	if len(records) == 0 {
		return invalid(ErrEmptyBatch)
	}
	return validateMembers(records)
}

func validateMembers(members []Transaction) error {
	n := len(members)
	for i, m := range members {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("installment %d: %w", i+1, err)
		}
	}
	if n == 1 {
		return nil
	}
	first := members[0]
	for i, m := range members {
		if m.InstallmentIndex != i+1 || m.InstallmentCount != n {
			return invalid(ErrGroupOrder)
		}
		if m.OwnerID != first.OwnerID ||
			m.InstallmentGroupID != first.InstallmentGroupID ||
			m.CreditCardID != first.CreditCardID ||
			m.Category != first.Category ||
			m.PaymentMethod != first.PaymentMethod ||
			m.Type != first.Type {
			return invalid(ErrGroupMismatch)
		}
		if !m.Date.Equal(first.Date.AddMonths(i).Time) {
			return invalid(ErrGroupSchedule)
		}
	}
	return nil
}
