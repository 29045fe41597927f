// Package ledger defines the persistence ports of the ledger core. Backends
// live in ledger/memory, storage (SQLite) and storage/postgres.
package ledger

import (
	"context"

	"carteira/internal/core"
)

// Ports implemented by every backend.
type (
	// TransactionWriter commits ledger records. CreateGroup is all-or-nothing:
	// either every record is stored or none is. Backends assign fresh record
	// ids, plus one shared group id when the batch has more than one record,
	// on every attempt.
	TransactionWriter interface {
		CreateGroup(ctx context.Context, records []core.Transaction) (core.GroupHandle, error)
		CreateSingle(ctx context.Context, record core.Transaction) (id string, err error)
	}

	TransactionReader interface {
		ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error)
		// GetGroup returns core.ErrNotFound when ownerID has no such group.
		GetGroup(ctx context.Context, ownerID, groupID string) (core.InstallmentGroup, error)
	}

	CreditCardStore interface {
		CreateCreditCard(ctx context.Context, card core.CreditCard) (id string, err error)
		ListCreditCards(ctx context.Context, ownerID string) ([]core.CreditCard, error)
	}

	InvestmentStore interface {
		CreateInvestment(ctx context.Context, inv core.Investment) (id string, err error)
		ListInvestments(ctx context.Context, ownerID string) ([]core.Investment, error)
	}

	ProfileStore interface {
		// CreateProfile stores a new profile. The role passed in is ignored:
		// the first profile ever created atomically claims the administrator
		// slot and is stored as admin, every later one as pending.
		CreateProfile(ctx context.Context, p core.UserProfile) (core.UserProfile, error)
		GetProfile(ctx context.Context, userID string) (core.UserProfile, error)
		ListProfiles(ctx context.Context) ([]core.UserProfile, error)
		// SetRole moves userID from one role to another only while the stored
		// role still equals from. Illegal pairs fail with
		// core.ErrInvalidTransition, a stale from with core.ErrWriteConflict.
		SetRole(ctx context.Context, userID string, from, to core.Role) error
	}

	// Store is the full Ledger Store.
	Store interface {
		TransactionWriter
		TransactionReader
		CreditCardStore
		InvestmentStore
		ProfileStore
		Close() error
	}
)
