package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validExpense() Transaction {
	return Transaction{
		OwnerID:          "u1",
		Date:             NewDate(2025, 1, 1),
		Description:      "ok",
		Amount:           Money{Cents: -100},
		Category:         "Food",
		Type:             Expense,
		PaymentMethod:    Cash,
		InstallmentIndex: 1,
		InstallmentCount: 1,
	}
}

func TestDateValidate(t *testing.T) {
	if err := NewDate(2025, 12, 31).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	err := Date{Time: time.Time{}}.Validate()
	if !errors.Is(err, ErrValidation) || !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected validation/invalid date, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validExpense().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"zero date", func(tx *Transaction) { tx.Date = Date{} }, ErrInvalidDate},
		{"no owner", func(tx *Transaction) { tx.OwnerID = " " }, ErrMissingOwner},
		{"empty description", func(tx *Transaction) { tx.Description = "" }, ErrEmptyDescription},
		{"empty category", func(tx *Transaction) { tx.Category = "" }, ErrEmptyCategory},
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }, ErrInvalidAmount},
		{"positive expense", func(tx *Transaction) { tx.Amount = Money{Cents: 5} }, ErrAmountSign},
		{"negative income", func(tx *Transaction) { tx.Type = Income }, ErrAmountSign},
		{"bad type", func(tx *Transaction) { tx.Type = "transfer" }, ErrInvalidType},
		{"bad method", func(tx *Transaction) { tx.PaymentMethod = "cheque" }, ErrInvalidPaymentMethod},
		{"card without id", func(tx *Transaction) { tx.PaymentMethod = Card }, ErrMissingCreditCard},
		{"index past count", func(tx *Transaction) { tx.InstallmentIndex = 2 }, ErrInvalidInstallmentCount},
		{"zero count", func(tx *Transaction) { tx.InstallmentCount = 0 }, ErrInvalidInstallmentCount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validExpense()
			tc.mutate(&tx)
			err := tx.Validate()
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestInvestmentMarketValueAndChange(t *testing.T) {
	inv := Investment{
		OwnerID:       "u1",
		Name:          "Tesouro",
		Quantity:      decimal.RequireFromString("2.5"),
		ValuePerShare: Money{Cents: 1001},
		AveragePrice:  Money{Cents: 800},
	}
	if err := inv.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	// 2.5 * 10.01 = 25.025 -> 25.03
	if got := inv.MarketValue().Cents; got != 2503 {
		t.Fatalf("market value = %d, want 2503", got)
	}
	if got := inv.ChangePercent(); got != 25.13 {
		t.Fatalf("change percent = %v, want 25.13", got)
	}
	inv.AveragePrice = Money{}
	if got := inv.ChangePercent(); got != 0 {
		t.Fatalf("change percent without average = %v, want 0", got)
	}
}

func TestUserProfileValidate(t *testing.T) {
	p := UserProfile{ID: "u1", Email: "a@b.c", Role: RolePending}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	p.Email = "nope"
	if err := p.Validate(); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	p.Email = "a@b.c"
	p.Role = "owner"
	if err := p.Validate(); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected invalid role, got %v", err)
	}
}
