package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Cash PaymentMethod = "cash"
	Pix  PaymentMethod = "pix"
	Card PaymentMethod = "card"
)

const maxDescriptionLen = 200

type (
	TransactionType string
	PaymentMethod   string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is one ledger entry. Amount is signed: income is positive,
	// expense is negative. Installment members share InstallmentGroupID.
	Transaction struct {
		ID                 string
		OwnerID            string
		Date               Date
		Description        string
		Amount             Money
		Category           string
		Type               TransactionType
		PaymentMethod      PaymentMethod
		CreditCardID       string
		InstallmentGroupID string
		InstallmentIndex   int // 1-based
		InstallmentCount   int
	}

	CreditCard struct {
		ID           string
		OwnerID      string
		HolderName   string
		NumberMasked string
		Balance      Money
		Limit        Money
	}

	Investment struct {
		ID            string
		OwnerID       string
		Name          string
		Ticker        string
		Type          string
		Quantity      decimal.Decimal
		ValuePerShare Money
		AveragePrice  Money // zero when unknown
		Institution   string
	}

	UserProfile struct {
		ID               string
		Email            string
		FirstName        string
		LastName         string
		Role             Role
		RegistrationDate time.Time
	}

	// GroupHandle is what a committed batch hands back to the caller.
	GroupHandle struct {
		GroupID string // empty for a single record
		IDs     []string
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return invalid(ErrInvalidDate)
	}
	return nil
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case Cash, Pix, Card:
		return true
	}
	return false
}

// Validate checks a single record in isolation. Group-level rules live in
// InstallmentGroup.Validate.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.OwnerID) == "" {
		return invalid(ErrMissingOwner)
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Description) == "" {
		return invalid(ErrEmptyDescription)
	}
	if len(t.Description) > maxDescriptionLen {
		return invalid(ErrDescriptionTooLong)
	}
	if strings.TrimSpace(t.Category) == "" {
		return invalid(ErrEmptyCategory)
	}
	if !t.Type.Valid() {
		return invalid(ErrInvalidType)
	}
	if !t.PaymentMethod.Valid() {
		return invalid(ErrInvalidPaymentMethod)
	}
	if t.PaymentMethod == Card && strings.TrimSpace(t.CreditCardID) == "" {
		return invalid(ErrMissingCreditCard)
	}
	switch {
	case t.Amount.Cents == 0:
		return invalid(ErrInvalidAmount)
	case t.Type == Income && t.Amount.Cents < 0:
		return invalid(ErrAmountSign)
	case t.Type == Expense && t.Amount.Cents > 0:
		return invalid(ErrAmountSign)
	}
	if t.InstallmentCount < 1 || t.InstallmentIndex < 1 || t.InstallmentIndex > t.InstallmentCount {
		return invalid(ErrInvalidInstallmentCount)
	}
	return nil
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return invalid(ErrMissingOwner)
	}
	if strings.TrimSpace(c.HolderName) == "" {
		return invalid(ErrEmptyHolderName)
	}
	if c.Limit.Cents < 0 || c.Balance.Cents < 0 {
		return invalid(ErrInvalidAmount)
	}
	return nil
}

// Quantities are stored as NUMERIC(20, 8).
const (
	QuantityScale  = 8
	quantityDigits = 20
)

var maxQuantity = decimal.New(1, quantityDigits-QuantityScale)

func (i Investment) Validate() error {
	if strings.TrimSpace(i.OwnerID) == "" {
		return invalid(ErrMissingOwner)
	}
	if strings.TrimSpace(i.Name) == "" {
		return invalid(ErrEmptyName)
	}
	if i.Quantity.IsNegative() || i.ValuePerShare.Cents < 0 || i.AveragePrice.Cents < 0 {
		return invalid(ErrInvalidAmount)
	}
	if !i.Quantity.Equal(i.Quantity.Truncate(QuantityScale)) {
		return fmt.Errorf("%w: %w: more than %d decimal places", ErrValidation, ErrInvalidQuantity, QuantityScale)
	}
	if i.Quantity.GreaterThanOrEqual(maxQuantity) {
		return fmt.Errorf("%w: %w: %s is too large", ErrValidation, ErrInvalidQuantity, i.Quantity)
	}
	return nil
}

// MarketValue is quantity times value per share, rounded half away from zero
// to whole cents.
func (i Investment) MarketValue() Money {
	v := i.Quantity.Mul(decimal.NewFromInt(i.ValuePerShare.Cents)).Round(0)
	return Money{Cents: v.IntPart()}
}

// ChangePercent compares the current share value against the average price
// paid. Zero when no average price is recorded.
func (i Investment) ChangePercent() float64 {
	if i.AveragePrice.Cents == 0 {
		return 0
	}
	cur := decimal.NewFromInt(i.ValuePerShare.Cents)
	avg := decimal.NewFromInt(i.AveragePrice.Cents)
	return cur.Sub(avg).Div(avg).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

func (p UserProfile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return invalid(ErrMissingOwner)
	}
	if strings.TrimSpace(p.Email) == "" || !strings.Contains(p.Email, "@") {
		return invalid(ErrInvalidEmail)
	}
	if !p.Role.Valid() {
		return invalid(ErrInvalidRole)
	}
	return nil
}
