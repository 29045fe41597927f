package sheets

import (
	"context"
	"errors"

	"carteira/internal/core"
)

// ErrRejected marks an export the spreadsheet refused outright (bad
// spreadsheet id, missing permission, malformed range). Retrying it cannot
// succeed.
var ErrRejected = errors.New("export rejected")

// Ports for outbound adapters.
type (
	// LedgerExporter mirrors committed ledger records into a spreadsheet.
	// Records are appended in the order given; ref identifies where they
	// landed.
	LedgerExporter interface {
		AppendTransactions(ctx context.Context, txs []core.Transaction) (ref string, err error)
	}
)

// Header is the column layout of an export sheet.
var Header = []string{
	"ID", "Date", "Description", "Amount", "Category", "Type",
	"Payment method", "Credit card", "Group", "Installment", "Owner",
}

// Row renders one transaction in Header order.
func Row(t core.Transaction) []any {
	position := ""
	if t.InstallmentCount > 1 {
		position = formatPosition(t.InstallmentIndex, t.InstallmentCount)
	}
	return []any{
		t.ID,
		t.Date.String(),
		t.Description,
		t.Amount.String(),
		t.Category,
		string(t.Type),
		string(t.PaymentMethod),
		t.CreditCardID,
		t.InstallmentGroupID,
		position,
		t.OwnerID,
	}
}
