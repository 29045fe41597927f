// Package storetest holds behaviour checks shared by every ledger.Store
// backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/installment"
	"carteira/internal/ledger"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) ledger.Store

// Run exercises a backend against the ledger.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateGroupAssignsSharedGroupID", func(t *testing.T) { testCreateGroup(t, newStore(t)) })
	t.Run("CreateGroupIsAllOrNothing", func(t *testing.T) { testCreateGroupAtomic(t, newStore(t)) })
	t.Run("CreateSingleHasNoGroup", func(t *testing.T) { testCreateSingle(t, newStore(t)) })
	t.Run("GetGroupUnknown", func(t *testing.T) { testGetGroupUnknown(t, newStore(t)) })
	t.Run("CardsAndInvestments", func(t *testing.T) { testCardsAndInvestments(t, newStore(t)) })
	t.Run("ListsKeepInsertionOrder", func(t *testing.T) { testInsertionOrder(t, newStore(t)) })
	t.Run("FirstProfileIsAdmin", func(t *testing.T) { testFirstProfile(t, newStore(t)) })
	t.Run("FirstAdminRace", func(t *testing.T) { testFirstAdminRace(t, newStore(t)) })
	t.Run("SetRole", func(t *testing.T) { testSetRole(t, newStore(t)) })
}

func threeInstallments(t *testing.T, owner string) core.InstallmentGroup {
	t.Helper()
	g, err := installment.Expand(installment.Request{
		OwnerID:       owner,
		Total:         core.Money{Cents: 10000},
		Description:   "Bike",
		Category:      "Transport",
		PaymentMethod: core.Card,
		CreditCardID:  "card-1",
		Count:         3,
		FirstDate:     core.NewDate(2024, 1, 31),
	}, core.NewDate(2024, 1, 1).Time)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	return g
}

func testCreateGroup(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	g := threeInstallments(t, "u1")

	h, err := s.CreateGroup(ctx, g.Members)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if h.GroupID == "" || len(h.IDs) != 3 {
		t.Fatalf("unexpected handle %+v", h)
	}

	got, err := s.GetGroup(ctx, "u1", h.GroupID)
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("stored group invalid: %v", err)
	}
	if got.Total.Cents != -10000 || got.Len() != 3 {
		t.Fatalf("stored group total=%d len=%d", got.Total.Cents, got.Len())
	}
	wantDates := []core.Date{core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 29), core.NewDate(2024, 3, 31)}
	wantCents := []int64{-3333, -3333, -3334}
	for i, m := range got.Members {
		if m.InstallmentGroupID != h.GroupID {
			t.Errorf("member %d group id %q", i, m.InstallmentGroupID)
		}
		if !m.Date.Equal(wantDates[i].Time) || m.Amount.Cents != wantCents[i] {
			t.Errorf("member %d = %s %d", i, m.Date, m.Amount.Cents)
		}
	}

	if _, err := s.GetGroup(ctx, "someone-else", h.GroupID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("other owner should not see the group, got %v", err)
	}

	// a second commit of the same records gets fresh ids
	h2, err := s.CreateGroup(ctx, g.Members)
	if err != nil {
		t.Fatalf("second CreateGroup: %v", err)
	}
	if h2.GroupID == h.GroupID || h2.IDs[0] == h.IDs[0] {
		t.Fatalf("ids reused across commits: %+v %+v", h, h2)
	}
}

func testCreateGroupAtomic(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	g := threeInstallments(t, "u1")
	g.Members[2].Description = ""

	_, err := s.CreateGroup(ctx, g.Members)
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	txs, err := s.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("partial group persisted: %d records", len(txs))
	}
}

func testCreateSingle(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	tx := core.Transaction{
		OwnerID:          "u1",
		Date:             core.NewDate(2024, 5, 2),
		Description:      "Salary",
		Amount:           core.Money{Cents: 500000},
		Category:         "Work",
		Type:             core.Income,
		PaymentMethod:    core.Pix,
		InstallmentIndex: 1,
		InstallmentCount: 1,
	}
	id, err := s.CreateSingle(ctx, tx)
	if err != nil || id == "" {
		t.Fatalf("CreateSingle: id=%q err=%v", id, err)
	}
	txs, err := s.ListTransactions(ctx, "u1")
	if err != nil || len(txs) != 1 {
		t.Fatalf("ListTransactions: %v (%d)", err, len(txs))
	}
	got := txs[0]
	if got.ID != id || got.InstallmentGroupID != "" || got.Amount.Cents != 500000 || got.Type != core.Income {
		t.Fatalf("unexpected record %+v", got)
	}
	if other, _ := s.ListTransactions(ctx, "u2"); len(other) != 0 {
		t.Fatalf("records leaked to another owner")
	}
}

func testGetGroupUnknown(t *testing.T, s ledger.Store) {
	if _, err := s.GetGroup(context.Background(), "u1", "00000000-0000-0000-0000-000000000000"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testCardsAndInvestments(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	cardID, err := s.CreateCreditCard(ctx, core.CreditCard{
		OwnerID: "u1", HolderName: "Ana", NumberMasked: "**** 1234",
		Balance: core.Money{Cents: 1500}, Limit: core.Money{Cents: 100000},
	})
	if err != nil || cardID == "" {
		t.Fatalf("CreateCreditCard: %v", err)
	}
	cards, err := s.ListCreditCards(ctx, "u1")
	if err != nil || len(cards) != 1 || cards[0].ID != cardID || cards[0].Balance.Cents != 1500 {
		t.Fatalf("ListCreditCards: %v %+v", err, cards)
	}

	invID, err := s.CreateInvestment(ctx, core.Investment{
		OwnerID: "u1", Name: "Fund", Ticker: "FND11", Type: "fii",
		Quantity: decimal.RequireFromString("3.5"), ValuePerShare: core.Money{Cents: 10000},
		AveragePrice: core.Money{Cents: 9000}, Institution: "Broker",
	})
	if err != nil || invID == "" {
		t.Fatalf("CreateInvestment: %v", err)
	}
	invs, err := s.ListInvestments(ctx, "u1")
	if err != nil || len(invs) != 1 {
		t.Fatalf("ListInvestments: %v %+v", err, invs)
	}
	if !invs[0].Quantity.Equal(decimal.RequireFromString("3.5")) || invs[0].AveragePrice.Cents != 9000 {
		t.Fatalf("investment round trip lost data: %+v", invs[0])
	}

	fine := decimal.RequireFromString("0.12345678")
	if _, err := s.CreateInvestment(ctx, core.Investment{OwnerID: "u1", Name: "BTC", Quantity: fine}); err != nil {
		t.Fatalf("CreateInvestment at full scale: %v", err)
	}
	if _, err := s.CreateInvestment(ctx, core.Investment{OwnerID: "u1", Name: "BTC", Quantity: decimal.RequireFromString("0.123456789")}); !errors.Is(err, core.ErrInvalidQuantity) {
		t.Fatalf("expected quantity error for 9 decimal places, got %v", err)
	}
	invs, _ = s.ListInvestments(ctx, "u1")
	if len(invs) != 2 || !invs[1].Quantity.Equal(fine) {
		t.Fatalf("full-scale quantity not kept exactly or out of insertion order: %+v", invs)
	}

	if _, err := s.CreateCreditCard(ctx, core.CreditCard{OwnerID: "u1"}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error for card without holder, got %v", err)
	}
}

// testInsertionOrder adds records within the same second; lists must come
// back in the order they were created.
func testInsertionOrder(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	var cardIDs, invIDs []string
	for i := 0; i < 5; i++ {
		id, err := s.CreateCreditCard(ctx, core.CreditCard{OwnerID: "u1", HolderName: fmt.Sprintf("Holder %d", i)})
		if err != nil {
			t.Fatalf("CreateCreditCard: %v", err)
		}
		cardIDs = append(cardIDs, id)
		id, err = s.CreateInvestment(ctx, core.Investment{OwnerID: "u1", Name: fmt.Sprintf("Asset %d", i), Quantity: decimal.NewFromInt(1)})
		if err != nil {
			t.Fatalf("CreateInvestment: %v", err)
		}
		invIDs = append(invIDs, id)
	}

	cards, err := s.ListCreditCards(ctx, "u1")
	if err != nil || len(cards) != len(cardIDs) {
		t.Fatalf("ListCreditCards: %v %+v", err, cards)
	}
	for i, c := range cards {
		if c.ID != cardIDs[i] {
			t.Fatalf("card %d = %s, want %s", i, c.ID, cardIDs[i])
		}
	}
	invs, err := s.ListInvestments(ctx, "u1")
	if err != nil || len(invs) != len(invIDs) {
		t.Fatalf("ListInvestments: %v %+v", err, invs)
	}
	for i, inv := range invs {
		if inv.ID != invIDs[i] {
			t.Fatalf("investment %d = %s, want %s", i, inv.ID, invIDs[i])
		}
	}
}

func profile(id string) core.UserProfile {
	return core.UserProfile{ID: id, Email: id + "@example.com", FirstName: "F", LastName: "L", Role: core.RoleAdmin}
}

func testFirstProfile(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	first, err := s.CreateProfile(ctx, profile("u1"))
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if first.Role != core.RoleAdmin {
		t.Fatalf("first profile role = %s", first.Role)
	}
	second, err := s.CreateProfile(ctx, profile("u2"))
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if second.Role != core.RolePending {
		t.Fatalf("second profile role = %s, caller-supplied role must be ignored", second.Role)
	}
	if _, err := s.CreateProfile(ctx, profile("u2")); !errors.Is(err, core.ErrWriteConflict) {
		t.Fatalf("duplicate registration should conflict, got %v", err)
	}
	got, err := s.GetProfile(ctx, "u2")
	if err != nil || got.Email != "u2@example.com" || got.RegistrationDate.IsZero() {
		t.Fatalf("GetProfile: %v %+v", err, got)
	}
	all, err := s.ListProfiles(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListProfiles: %v %d", err, len(all))
	}
	if _, err := s.GetProfile(ctx, "ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testFirstAdminRace(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	const n = 16
	var wg sync.WaitGroup
	roles := make([]core.Role, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.CreateProfile(ctx, profile(fmt.Sprintf("racer-%d", i)))
			roles[i], errs[i] = p.Role, err
		}(i)
	}
	wg.Wait()

	admins := 0
	for i := range roles {
		if errs[i] != nil {
			t.Fatalf("racer %d: %v", i, errs[i])
		}
		if roles[i] == core.RoleAdmin {
			admins++
		}
	}
	if admins != 1 {
		t.Fatalf("expected exactly one admin, got %d", admins)
	}
}

func testSetRole(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	if _, err := s.CreateProfile(ctx, profile("admin")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateProfile(ctx, profile("u1")); err != nil {
		t.Fatal(err)
	}

	if err := s.SetRole(ctx, "u1", core.RolePending, core.RoleBasico); err != nil {
		t.Fatalf("pending -> basico: %v", err)
	}
	// stale expectation
	if err := s.SetRole(ctx, "u1", core.RolePending, core.RoleCompleto); !errors.Is(err, core.ErrWriteConflict) {
		t.Fatalf("expected write conflict, got %v", err)
	}
	if err := s.SetRole(ctx, "u1", core.RoleBasico, core.RolePending); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := s.SetRole(ctx, "ghost", core.RolePending, core.RoleBasico); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	p, err := s.GetProfile(ctx, "u1")
	if err != nil || p.Role != core.RoleBasico {
		t.Fatalf("role after failed writes = %s (%v)", p.Role, err)
	}
}
