package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/ledger"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

var _ ledger.Store = (*SQLiteRepository)(nil)

// SQLiteRepository is the ledger.Store backed by a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection serialises transactions
	// instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateGroup(ctx context.Context, records []core.Transaction) (core.GroupHandle, error) {
	prepared, h, err := ledger.PrepareBatch(records)
	if err != nil {
		return core.GroupHandle{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.GroupHandle{}, fmt.Errorf("%w: begin: %w", core.ErrWriteConflict, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (id, owner_id, date, description, amount_cents, category, type,
			payment_method, credit_card_id, installment_group_id, installment_index, installment_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return core.GroupHandle{}, fmt.Errorf("%w: prepare insert: %w", core.ErrWriteConflict, err)
	}
	defer stmt.Close()

	for _, t := range prepared {
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.OwnerID, t.Date.Format(dateLayout), t.Description, t.Amount.Cents, t.Category,
			string(t.Type), string(t.PaymentMethod), t.CreditCardID, t.InstallmentGroupID,
			t.InstallmentIndex, t.InstallmentCount,
		); err != nil {
			return core.GroupHandle{}, fmt.Errorf("%w: insert transaction %d/%d: %w", core.ErrWriteConflict, t.InstallmentIndex, t.InstallmentCount, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.GroupHandle{}, fmt.Errorf("%w: commit: %w", core.ErrWriteConflict, err)
	}

	slog.InfoContext(ctx, "Transactions saved to SQLite",
		"owner_id", prepared[0].OwnerID,
		"group_id", h.GroupID,
		"records", len(prepared))

	return h, nil
}

func (r *SQLiteRepository) CreateSingle(ctx context.Context, record core.Transaction) (string, error) {
	h, err := r.CreateGroup(ctx, []core.Transaction{record})
	if err != nil {
		return "", err
	}
	return h.IDs[0], nil
}

const selectTransactions = `
	SELECT id, owner_id, date, description, amount_cents, category, type, payment_method,
		credit_card_id, installment_group_id, installment_index, installment_count
	FROM transactions`

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransactions+` WHERE owner_id = ? ORDER BY date DESC, installment_index`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return scanTransactions(rows)
}

func (r *SQLiteRepository) GetGroup(ctx context.Context, ownerID, groupID string) (core.InstallmentGroup, error) {
	if groupID == "" {
		return core.InstallmentGroup{}, ledger.NotFound("installment group", groupID)
	}
	rows, err := r.db.QueryContext(ctx, selectTransactions+` WHERE owner_id = ? AND installment_group_id = ? ORDER BY installment_index`, ownerID, groupID)
	if err != nil {
		return core.InstallmentGroup{}, fmt.Errorf("get group: %w", err)
	}
	members, err := scanTransactions(rows)
	if err != nil {
		return core.InstallmentGroup{}, err
	}
	if len(members) == 0 {
		return core.InstallmentGroup{}, ledger.NotFound("installment group", groupID)
	}
	return core.NewInstallmentGroup(groupID, members), nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		var (
			t       core.Transaction
			date    string
			typ, pm string
			amount  int64
		)
		if err := rows.Scan(&t.ID, &t.OwnerID, &date, &t.Description, &amount, &t.Category, &typ, &pm,
			&t.CreditCardID, &t.InstallmentGroupID, &t.InstallmentIndex, &t.InstallmentCount); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		d, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		t.Date = core.Date{Time: d}
		t.Amount = core.Money{Cents: amount}
		t.Type = core.TransactionType(typ)
		t.PaymentMethod = core.PaymentMethod(pm)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateCreditCard(ctx context.Context, c core.CreditCard) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	c.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credit_cards (id, owner_id, holder_name, number_masked, balance_cents, limit_cents)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.HolderName, c.NumberMasked, c.Balance.Cents, c.Limit.Cents)
	if err != nil {
		return "", fmt.Errorf("create credit card: %w", err)
	}
	return c.ID, nil
}

func (r *SQLiteRepository) ListCreditCards(ctx context.Context, ownerID string) ([]core.CreditCard, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, holder_name, number_masked, balance_cents, limit_cents
		FROM credit_cards WHERE owner_id = ? ORDER BY created_at, rowid`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list credit cards: %w", err)
	}
	defer rows.Close()

	var out []core.CreditCard
	for rows.Next() {
		var c core.CreditCard
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.HolderName, &c.NumberMasked, &c.Balance.Cents, &c.Limit.Cents); err != nil {
			return nil, fmt.Errorf("scan credit card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateInvestment(ctx context.Context, inv core.Investment) (string, error) {
	if err := inv.Validate(); err != nil {
		return "", err
	}
	inv.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO investments (id, owner_id, name, ticker, type, quantity, value_per_share_cents,
			average_price_cents, institution)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.OwnerID, inv.Name, inv.Ticker, inv.Type, inv.Quantity.String(),
		inv.ValuePerShare.Cents, inv.AveragePrice.Cents, inv.Institution)
	if err != nil {
		return "", fmt.Errorf("create investment: %w", err)
	}
	return inv.ID, nil
}

func (r *SQLiteRepository) ListInvestments(ctx context.Context, ownerID string) ([]core.Investment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, ticker, type, quantity, value_per_share_cents, average_price_cents, institution
		FROM investments WHERE owner_id = ? ORDER BY created_at, rowid`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	defer rows.Close()

	var out []core.Investment
	for rows.Next() {
		var (
			inv core.Investment
			qty string
		)
		if err := rows.Scan(&inv.ID, &inv.OwnerID, &inv.Name, &inv.Ticker, &inv.Type, &qty,
			&inv.ValuePerShare.Cents, &inv.AveragePrice.Cents, &inv.Institution); err != nil {
			return nil, fmt.Errorf("scan investment: %w", err)
		}
		if inv.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("parse quantity %q: %w", qty, err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// CreateProfile inserts the profile and, in the same transaction, tries to
// claim the singleton admin row. Only the claim winner is stored as admin.
func (r *SQLiteRepository) CreateProfile(ctx context.Context, p core.UserProfile) (core.UserProfile, error) {
	p.Role = core.RolePending
	if err := p.Validate(); err != nil {
		return core.UserProfile{}, err
	}
	if p.RegistrationDate.IsZero() {
		p.RegistrationDate = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("%w: begin: %w", core.ErrWriteConflict, err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, p.ID).Scan(&exists)
	switch {
	case err == nil:
		return core.UserProfile{}, fmt.Errorf("%w: %w: %s", core.ErrWriteConflict, core.ErrProfileExists, p.ID)
	case !errors.Is(err, sql.ErrNoRows):
		return core.UserProfile{}, fmt.Errorf("check profile: %w", err)
	}

	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO admin_claim (id, user_id) VALUES (1, ?)`, p.ID)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("%w: claim admin: %w", core.ErrWriteConflict, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		p.Role = core.RoleAdmin
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, role, registration_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.FirstName, p.LastName, string(p.Role), p.RegistrationDate.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return core.UserProfile{}, fmt.Errorf("%w: %w: %s", core.ErrWriteConflict, core.ErrProfileExists, p.ID)
		}
		return core.UserProfile{}, fmt.Errorf("create profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.UserProfile{}, fmt.Errorf("%w: commit: %w", core.ErrWriteConflict, err)
	}

	slog.InfoContext(ctx, "Profile saved to SQLite", "user_id", p.ID, "role", p.Role)
	return p, nil
}

const selectProfiles = `SELECT id, email, first_name, last_name, role, registration_date FROM users`

func scanProfile(scan func(...any) error) (core.UserProfile, error) {
	var (
		p        core.UserProfile
		role, rd string
	)
	if err := scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &role, &rd); err != nil {
		return core.UserProfile{}, err
	}
	p.Role = core.Role(role)
	t, err := time.Parse(time.RFC3339Nano, rd)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("parse registration date %q: %w", rd, err)
	}
	p.RegistrationDate = t
	return p, nil
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.UserProfile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx, selectProfiles+` WHERE id = ?`, userID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, ledger.NotFound("user", userID)
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListProfiles(ctx context.Context) ([]core.UserProfile, error) {
	rows, err := r.db.QueryContext(ctx, selectProfiles+` ORDER BY registration_date, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []core.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetRole is a compare-and-set on the role column.
func (r *SQLiteRepository) SetRole(ctx context.Context, userID string, from, to core.Role) error {
	if err := ledger.CheckRoleChange(from, to); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ? AND role = ?`, string(to), userID, string(from))
	if err != nil {
		return fmt.Errorf("%w: update role: %w", core.ErrWriteConflict, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if n == 1 {
		slog.InfoContext(ctx, "Role updated in SQLite", "user_id", userID, "from", from, "to", to)
		return nil
	}
	if _, err := r.GetProfile(ctx, userID); err != nil {
		return err
	}
	return ledger.Conflict(userID, from)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
