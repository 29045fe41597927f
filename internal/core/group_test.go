package core

import (
	"errors"
	"testing"
)

func cardGroup(amounts ...int64) []Transaction {
	first := NewDate(2024, 1, 31)
	out := make([]Transaction, len(amounts))
	for i, a := range amounts {
		out[i] = Transaction{
			OwnerID:            "u1",
			Date:               first.AddMonths(i),
			Description:        "TV",
			Amount:             Money{Cents: -a},
			Category:           "Home",
			Type:               Expense,
			PaymentMethod:      Card,
			CreditCardID:       "c1",
			InstallmentGroupID: "g1",
			InstallmentIndex:   i + 1,
			InstallmentCount:   len(amounts),
		}
	}
	return out
}

func TestInstallmentGroupValidate(t *testing.T) {
	g := InstallmentGroup{ID: "g1", Total: Money{Cents: -10000}, Members: cardGroup(3333, 3333, 3334)}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	g.Total = Money{Cents: -9999}
	if err := g.Validate(); !errors.Is(err, ErrGroupSum) {
		t.Fatalf("expected sum error, got %v", err)
	}
}

func TestValidateBatchRejectsMalformedGroups(t *testing.T) {
	cases := []struct {
		name   string
		mutate func([]Transaction)
		want   error
	}{
		{"gap in indices", func(m []Transaction) { m[1].InstallmentIndex = 3; m[2].InstallmentIndex = 2 }, ErrGroupOrder},
		{"wrong count", func(m []Transaction) {
			for i := range m {
				m[i].InstallmentCount = 4
			}
		}, ErrGroupOrder},
		{"different card", func(m []Transaction) { m[2].CreditCardID = "c2" }, ErrGroupMismatch},
		{"different category", func(m []Transaction) { m[1].Category = "Fun" }, ErrGroupMismatch},
		{"different group", func(m []Transaction) { m[1].InstallmentGroupID = "g2" }, ErrGroupMismatch},
		{"skipped month", func(m []Transaction) { m[2].Date = m[0].Date.AddMonths(3) }, ErrGroupSchedule},
		{"bad member", func(m []Transaction) { m[1].Description = "" }, ErrEmptyDescription},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			members := cardGroup(3333, 3333, 3334)
			tc.mutate(members)
			if err := ValidateBatch(members); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if err := ValidateBatch(nil); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected empty batch error, got %v", err)
	}
}

func TestNewInstallmentGroupOrdersMembers(t *testing.T) {
	members := cardGroup(100, 100, 101)
	members[0], members[2] = members[2], members[0]
	g := NewInstallmentGroup("g1", members)
	for i, m := range g.Members {
		if m.InstallmentIndex != i+1 {
			t.Fatalf("member %d has index %d", i, m.InstallmentIndex)
		}
	}
	if g.Total.Cents != -301 {
		t.Fatalf("total = %d, want -301", g.Total.Cents)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}
