// Package installment splits a card purchase into monthly ledger records.
package installment

import (
	"fmt"
	"strings"
	"time"

	"carteira/internal/core"
)

// Request describes one purchase to be expanded. Total is the positive
// purchase amount in cents; the resulting records carry it as an expense.
type Request struct {
	OwnerID       string
	Total         core.Money
	Description   string
	Category      string
	PaymentMethod core.PaymentMethod
	CreditCardID  string
	Count         int
	FirstDate     core.Date // required when Count > 1
}

// Expand turns req into Count expense records. The first Count-1 records get
// total/Count cents rounded down; the last absorbs the remainder so the group
// sums back to Total exactly. Record and group ids are left empty for the
// store to assign. now dates a single record when FirstDate is unset.
func Expand(req Request, now time.Time) (core.InstallmentGroup, error) {
	if req.Count <= 0 {
		return core.InstallmentGroup{}, fmt.Errorf("%w: %w: %d", core.ErrValidation, core.ErrInvalidInstallmentCount, req.Count)
	}
	if req.Total.Cents <= 0 {
		return core.InstallmentGroup{}, core.Invalid(core.ErrInvalidAmount)
	}
	if req.Count > 1 && req.FirstDate.IsZero() {
		return core.InstallmentGroup{}, core.Invalid(core.ErrMissingFirstDate)
	}

	method := req.PaymentMethod
	if method == "" {
		method = core.Card
	}
	if method != core.Card {
		return core.InstallmentGroup{}, fmt.Errorf("%w: %w: installments require card, got %q", core.ErrValidation, core.ErrInvalidPaymentMethod, method)
	}
	if strings.TrimSpace(req.CreditCardID) == "" {
		return core.InstallmentGroup{}, core.Invalid(core.ErrMissingCreditCard)
	}
	desc := strings.TrimSpace(req.Description)
	total := req.Total.Cents

	if req.Count == 1 {
		date := req.FirstDate
		if date.IsZero() {
			date = core.DateOf(now)
		}
		tx := core.Transaction{
			OwnerID:          req.OwnerID,
			Date:             date,
			Description:      desc,
			Amount:           core.Money{Cents: -total},
			Category:         req.Category,
			Type:             core.Expense,
			PaymentMethod:    method,
			CreditCardID:     req.CreditCardID,
			InstallmentIndex: 1,
			InstallmentCount: 1,
		}
		return core.InstallmentGroup{Total: tx.Amount, Members: []core.Transaction{tx}}, nil
	}

	n := int64(req.Count)
	if total < n {
		// every installment must carry at least one cent
		return core.InstallmentGroup{}, fmt.Errorf("%w: %w: %d installments for %d cents", core.ErrValidation, core.ErrInvalidInstallmentCount, req.Count, total)
	}
	base := total / n
	members := make([]core.Transaction, req.Count)
	for i := range members {
		amount := base
		if i == req.Count-1 {
			amount = total - base*(n-1)
		}
		members[i] = core.Transaction{
			OwnerID:          req.OwnerID,
			Date:             req.FirstDate.AddMonths(i),
			Description:      fmt.Sprintf("%s (%d/%d)", desc, i+1, req.Count),
			Amount:           core.Money{Cents: -amount},
			Category:         req.Category,
			Type:             core.Expense,
			PaymentMethod:    method,
			CreditCardID:     req.CreditCardID,
			InstallmentIndex: i + 1,
			InstallmentCount: req.Count,
		}
	}
	return core.InstallmentGroup{Total: core.Money{Cents: -total}, Members: members}, nil
}
