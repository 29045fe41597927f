// Package advice asks an external model for commentary on a user's finances.
package advice

import (
	"context"

	"carteira/internal/core"
)

type (
	TransactionInput struct {
		Date          string  `json:"date"`
		Description   string  `json:"description"`
		Amount        float64 `json:"amount"`
		Category      string  `json:"category"`
		Type          string  `json:"type"`
		PaymentMethod string  `json:"paymentMethod"`
	}

	InvestmentInput struct {
		Name          string  `json:"name"`
		Type          string  `json:"type"`
		Value         float64 `json:"value"`
		ChangePercent float64 `json:"changePercent"`
	}

	Request struct {
		Transactions []TransactionInput `json:"transactions"`
		Investments  []InvestmentInput  `json:"investments"`
	}

	Result struct {
		Analysis string `json:"analysis"`
	}

	// Advisor is the external collaborator. Callers enforce the minimum
	// history size before calling it.
	Advisor interface {
		Analyze(ctx context.Context, req Request) (Result, error)
	}
)

// BuildRequest converts ledger snapshots into the advisor payload.
func BuildRequest(txs []core.Transaction, investments []core.Investment) Request {
	req := Request{
		Transactions: make([]TransactionInput, 0, len(txs)),
		Investments:  make([]InvestmentInput, 0, len(investments)),
	}
	for _, t := range txs {
		req.Transactions = append(req.Transactions, TransactionInput{
			Date:          t.Date.String(),
			Description:   t.Description,
			Amount:        t.Amount.Float(),
			Category:      t.Category,
			Type:          string(t.Type),
			PaymentMethod: string(t.PaymentMethod),
		})
	}
	for _, inv := range investments {
		req.Investments = append(req.Investments, InvestmentInput{
			Name:          inv.Name,
			Type:          inv.Type,
			Value:         inv.MarketValue().Float(),
			ChangePercent: inv.ChangePercent(),
		})
	}
	return req
}
