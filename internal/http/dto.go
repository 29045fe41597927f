package http

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"carteira/internal/aggregate"
	"carteira/internal/core"
	"carteira/internal/entitlement"
	"carteira/internal/services"
)

// Requests

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

type transactionRequest struct {
	Date          string `json:"date" validate:"omitempty,isodate"`
	Description   string `json:"description" validate:"required,notblank,max=200"`
	Amount        string `json:"amount" validate:"required,amount"`
	Category      string `json:"category" validate:"required,notblank,max=100"`
	Type          string `json:"type" validate:"required,oneof=income expense"`
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=cash pix card"`
	CreditCardID  string `json:"creditCardId" validate:"required_if=PaymentMethod card"`
	Installments  int    `json:"installments" validate:"omitempty,min=1,max=72"`
}

func (r transactionRequest) submission() services.Submission {
	cents, _ := core.ParseDecimalToCents(r.Amount)
	var date core.Date
	if r.Date != "" {
		t, _ := time.Parse(time.DateOnly, r.Date)
		date = core.DateOf(t)
	}
	return services.Submission{
		Date:          date,
		Description:   strings.TrimSpace(r.Description),
		Amount:        core.Money{Cents: cents},
		Category:      strings.TrimSpace(r.Category),
		Type:          core.TransactionType(r.Type),
		PaymentMethod: core.PaymentMethod(r.PaymentMethod),
		CreditCardID:  r.CreditCardID,
		Installments:  r.Installments,
	}
}

type creditCardRequest struct {
	HolderName   string `json:"holderName" validate:"required,notblank,max=100"`
	NumberMasked string `json:"numberMasked" validate:"max=32"`
	Balance      string `json:"balance" validate:"omitempty,money"`
	Limit        string `json:"limit" validate:"omitempty,money"`
}

func (r creditCardRequest) card() core.CreditCard {
	return core.CreditCard{
		HolderName:   strings.TrimSpace(r.HolderName),
		NumberMasked: r.NumberMasked,
		Balance:      optionalMoney(r.Balance),
		Limit:        optionalMoney(r.Limit),
	}
}

type investmentRequest struct {
	Name          string `json:"name" validate:"required,notblank,max=100"`
	Ticker        string `json:"ticker" validate:"max=16"`
	Type          string `json:"type" validate:"max=50"`
	Quantity      string `json:"quantity" validate:"required,numeric"`
	ValuePerShare string `json:"valuePerShare" validate:"required,amount"`
	AveragePrice  string `json:"averagePrice" validate:"omitempty,money"`
	Institution   string `json:"institution" validate:"max=100"`
}

func (r investmentRequest) investment() (core.Investment, error) {
	qty, err := decimal.NewFromString(r.Quantity)
	if err != nil || qty.IsNegative() {
		return core.Investment{}, core.Invalid(core.ErrInvalidAmount)
	}
	return core.Investment{
		Name:          strings.TrimSpace(r.Name),
		Ticker:        strings.ToUpper(strings.TrimSpace(r.Ticker)),
		Type:          r.Type,
		Quantity:      qty,
		ValuePerShare: optionalMoney(r.ValuePerShare),
		AveragePrice:  optionalMoney(r.AveragePrice),
		Institution:   r.Institution,
	}, nil
}

type checkoutRequest struct {
	UserID     string `json:"userId" validate:"required"`
	TargetPlan string `json:"targetPlan" validate:"required,oneof=basico completo"`
}

type adminRoleRequest struct {
	UserID     string `json:"userId" validate:"required,notblank"`
	TargetRole string `json:"targetRole" validate:"required"`
}

// optionalMoney converts an already validated non-negative amount; empty
// means zero.
func optionalMoney(s string) core.Money {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return core.Money{}
	}
	return core.Money{Cents: d.Shift(2).Round(0).IntPart()}
}

// Responses

type transactionResponse struct {
	ID                 string `json:"id"`
	Date               string `json:"date"`
	Description        string `json:"description"`
	Amount             string `json:"amount"`
	AmountCents        int64  `json:"amountCents"`
	Category           string `json:"category"`
	Type               string `json:"type"`
	PaymentMethod      string `json:"paymentMethod"`
	CreditCardID       string `json:"creditCardId,omitempty"`
	InstallmentGroupID string `json:"installmentGroupId,omitempty"`
	InstallmentIndex   int    `json:"installmentIndex"`
	InstallmentCount   int    `json:"installmentCount"`
}

func toTransactionResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, transactionResponse{
			ID:                 t.ID,
			Date:               t.Date.String(),
			Description:        t.Description,
			Amount:             t.Amount.String(),
			AmountCents:        t.Amount.Cents,
			Category:           t.Category,
			Type:               string(t.Type),
			PaymentMethod:      string(t.PaymentMethod),
			CreditCardID:       t.CreditCardID,
			InstallmentGroupID: t.InstallmentGroupID,
			InstallmentIndex:   t.InstallmentIndex,
			InstallmentCount:   t.InstallmentCount,
		})
	}
	return out
}

type commitResponse struct {
	GroupID string   `json:"groupId,omitempty"`
	IDs     []string `json:"ids"`
}

type groupResponse struct {
	GroupID      string                `json:"groupId"`
	Total        string                `json:"total"`
	Installments []transactionResponse `json:"installments"`
}

type creditCardResponse struct {
	ID           string `json:"id"`
	HolderName   string `json:"holderName"`
	NumberMasked string `json:"numberMasked,omitempty"`
	Balance      string `json:"balance"`
	Limit        string `json:"limit"`
}

func toCreditCardResponses(cards []core.CreditCard) []creditCardResponse {
	out := make([]creditCardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, creditCardResponse{
			ID:           c.ID,
			HolderName:   c.HolderName,
			NumberMasked: c.NumberMasked,
			Balance:      c.Balance.String(),
			Limit:        c.Limit.String(),
		})
	}
	return out
}

type investmentResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Ticker        string  `json:"ticker,omitempty"`
	Type          string  `json:"type,omitempty"`
	Quantity      string  `json:"quantity"`
	ValuePerShare string  `json:"valuePerShare"`
	MarketValue   string  `json:"marketValue"`
	ChangePercent float64 `json:"changePercent"`
	Institution   string  `json:"institution,omitempty"`
}

func toInvestmentResponses(invs []core.Investment) []investmentResponse {
	out := make([]investmentResponse, 0, len(invs))
	for _, i := range invs {
		out = append(out, investmentResponse{
			ID:            i.ID,
			Name:          i.Name,
			Ticker:        i.Ticker,
			Type:          i.Type,
			Quantity:      i.Quantity.String(),
			ValuePerShare: i.ValuePerShare.String(),
			MarketValue:   i.MarketValue().String(),
			ChangePercent: i.ChangePercent(),
			Institution:   i.Institution,
		})
	}
	return out
}

type profileResponse struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	FirstName       string   `json:"firstName,omitempty"`
	LastName        string   `json:"lastName,omitempty"`
	Role            string   `json:"role"`
	Features        []string `json:"features,omitempty"`
	CreditCardLimit *int     `json:"creditCardLimit,omitempty"`
}

func toProfileResponse(p core.UserProfile, caps *entitlement.Capabilities) profileResponse {
	resp := profileResponse{
		ID:        p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      string(p.Role),
	}
	if caps != nil {
		resp.Features = make([]string, 0, len(caps.Features))
		for _, f := range caps.Features {
			resp.Features = append(resp.Features, string(f))
		}
		limit := caps.CreditCardCap
		resp.CreditCardLimit = &limit
	}
	return resp
}

type roleChangeResponse struct {
	Profile profileResponse `json:"profile"`
	From    string          `json:"from"`
	Changed bool            `json:"changed"`
}

type monthlyPointResponse struct {
	Month    int    `json:"month"`
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
}

type dashboardResponse struct {
	Series   []monthlyPointResponse `json:"series"`
	NetWorth struct {
		TotalBalance string `json:"totalBalance"`
		TotalDebt    string `json:"totalDebt"`
		NetWorth     string `json:"netWorth"`
	} `json:"netWorth"`
	TransactionCount int  `json:"transactionCount"`
	CanAnalyze       bool `json:"canAnalyze"`
}

func toDashboardResponse(sum aggregate.Summary) dashboardResponse {
	var resp dashboardResponse
	resp.Series = make([]monthlyPointResponse, 0, len(sum.Series))
	for _, p := range sum.Series {
		resp.Series = append(resp.Series, monthlyPointResponse{
			Month:    int(p.Month),
			Income:   p.Income.String(),
			Expenses: p.Expenses.String(),
		})
	}
	resp.NetWorth.TotalBalance = sum.NetWorth.TotalBalance.String()
	resp.NetWorth.TotalDebt = sum.NetWorth.TotalDebt.String()
	resp.NetWorth.NetWorth = sum.NetWorth.NetWorth.String()
	resp.TransactionCount = sum.TransactionCount
	resp.CanAnalyze = sum.CanAnalyze
	return resp
}
