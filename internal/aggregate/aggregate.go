// Package aggregate derives dashboard figures from committed ledger
// snapshots. Nothing here mutates its input.
package aggregate

import (
	"time"

	"carteira/internal/core"
)

// MinTransactionsForAnalysis is the history size below which advice is not
// requested.
const MinTransactionsForAnalysis = 10

// MonthlyPoint holds the totals of one month-of-year bucket.
type MonthlyPoint struct {
	Month    time.Month
	Income   core.Money
	Expenses core.Money // absolute value
}

type NetWorth struct {
	TotalBalance core.Money
	TotalDebt    core.Money
	NetWorth     core.Money
}

// Summary is the dashboard view of one user's ledger.
type Summary struct {
	Series           []MonthlyPoint
	NetWorth         NetWorth
	TransactionCount int
	CanAnalyze       bool
}

// MonthlySeries buckets transactions by month of year, ignoring the year,
// and returns January through now's month. Undated transactions are skipped.
func MonthlySeries(txs []core.Transaction, now time.Time) []MonthlyPoint {
	var buckets [12]MonthlyPoint
	for i := range buckets {
		buckets[i].Month = time.Month(i + 1)
	}
	for _, t := range txs {
		if t.Date.IsZero() {
			continue
		}
		b := &buckets[t.Date.Time.Month()-1]
		switch t.Type {
		case core.Income:
			b.Income = b.Income.Add(t.Amount)
		case core.Expense:
			b.Expenses = b.Expenses.Add(t.Amount.Abs())
		}
	}
	n := int(now.Month())
	out := make([]MonthlyPoint, n)
	copy(out, buckets[:n])
	return out
}

// ComputeNetWorth returns liquid balance plus investments, minus card debt.
// The liquid balance is the signed sum of cash and pix records, floored at
// zero; card purchases are carried by the card balances instead.
func ComputeNetWorth(txs []core.Transaction, cards []core.CreditCard, investments []core.Investment) NetWorth {
	var liquid, invested, debt core.Money
	for _, t := range txs {
		if t.PaymentMethod == core.Cash || t.PaymentMethod == core.Pix {
			liquid = liquid.Add(t.Amount)
		}
	}
	if liquid.Cents < 0 {
		liquid = core.Money{}
	}
	for _, inv := range investments {
		invested = invested.Add(inv.MarketValue())
	}
	for _, c := range cards {
		if c.Balance.Cents > 0 {
			debt = debt.Add(c.Balance)
		}
	}
	balance := liquid.Add(invested)
	return NetWorth{
		TotalBalance: balance,
		TotalDebt:    debt,
		NetWorth:     balance.Sub(debt),
	}
}

func CanAnalyze(txs []core.Transaction) bool {
	return len(txs) >= MinTransactionsForAnalysis
}

func Summarize(txs []core.Transaction, cards []core.CreditCard, investments []core.Investment, now time.Time) Summary {
	return Summary{
		Series:           MonthlySeries(txs, now),
		NetWorth:         ComputeNetWorth(txs, cards, investments),
		TransactionCount: len(txs),
		CanAnalyze:       CanAnalyze(txs),
	}
}
