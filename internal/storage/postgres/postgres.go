// Package postgres is the ledger.Store backed by PostgreSQL through pgx.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"carteira/internal/core"
	"carteira/internal/ledger"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ ledger.Store = (*Storage)(nil)

type Storage struct {
	db *pgxpool.Pool
}

// Open migrates the database at databaseURL and connects a pool to it.
func Open(ctx context.Context, databaseURL string) (*Storage, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewStorage(pool), nil
}

func NewStorage(db *pgxpool.Pool) *Storage {
	return &Storage{db: db}
}

func RunMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("create pgx driver: %w", err)
	}
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", d, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	s.db.Close()
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// === Transactions ===

func (s *Storage) CreateGroup(ctx context.Context, records []core.Transaction) (core.GroupHandle, error) {
	prepared, h, err := ledger.PrepareBatch(records)
	if err != nil {
		return core.GroupHandle{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return core.GroupHandle{}, fmt.Errorf("%w: begin: %w", core.ErrWriteConflict, err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, t := range prepared {
		b.Queue(`
			INSERT INTO transactions (id, owner_id, date, description, amount_cents, category, type,
				payment_method, credit_card_id, installment_group_id, installment_index, installment_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			t.ID, t.OwnerID, t.Date.Time, t.Description, t.Amount.Cents, t.Category,
			string(t.Type), string(t.PaymentMethod), t.CreditCardID, t.InstallmentGroupID,
			t.InstallmentIndex, t.InstallmentCount)
	}
	br := tx.SendBatch(ctx, b)
	for _, t := range prepared {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return core.GroupHandle{}, fmt.Errorf("%w: insert transaction %d/%d: %w", core.ErrWriteConflict, t.InstallmentIndex, t.InstallmentCount, err)
		}
	}
	if err := br.Close(); err != nil {
		return core.GroupHandle{}, fmt.Errorf("%w: close batch: %w", core.ErrWriteConflict, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return core.GroupHandle{}, fmt.Errorf("%w: commit: %w", core.ErrWriteConflict, err)
	}

	slog.InfoContext(ctx, "Transactions saved to Postgres",
		"owner_id", prepared[0].OwnerID,
		"group_id", h.GroupID,
		"records", len(prepared))
	return h, nil
}

func (s *Storage) CreateSingle(ctx context.Context, record core.Transaction) (string, error) {
	h, err := s.CreateGroup(ctx, []core.Transaction{record})
	if err != nil {
		return "", err
	}
	return h.IDs[0], nil
}

const selectTransactions = `
	SELECT id, owner_id, date, description, amount_cents, category, type, payment_method,
		credit_card_id, installment_group_id, installment_index, installment_count
	FROM transactions`

func (s *Storage) ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	rows, err := s.db.Query(ctx, selectTransactions+` WHERE owner_id = $1 ORDER BY date DESC, installment_index`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (s *Storage) GetGroup(ctx context.Context, ownerID, groupID string) (core.InstallmentGroup, error) {
	if groupID == "" {
		return core.InstallmentGroup{}, ledger.NotFound("installment group", groupID)
	}
	rows, err := s.db.Query(ctx, selectTransactions+` WHERE owner_id = $1 AND installment_group_id = $2 ORDER BY installment_index`, ownerID, groupID)
	if err != nil {
		return core.InstallmentGroup{}, fmt.Errorf("get group: %w", err)
	}
	members, err := collectTransactions(rows)
	if err != nil {
		return core.InstallmentGroup{}, err
	}
	if len(members) == 0 {
		return core.InstallmentGroup{}, ledger.NotFound("installment group", groupID)
	}
	return core.NewInstallmentGroup(groupID, members), nil
}

func collectTransactions(rows pgx.Rows) ([]core.Transaction, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Transaction, error) {
		var (
			t       core.Transaction
			date    time.Time
			typ, pm string
		)
		err := row.Scan(&t.ID, &t.OwnerID, &date, &t.Description, &t.Amount.Cents, &t.Category, &typ, &pm,
			&t.CreditCardID, &t.InstallmentGroupID, &t.InstallmentIndex, &t.InstallmentCount)
		t.Date = core.DateOf(date)
		t.Type = core.TransactionType(typ)
		t.PaymentMethod = core.PaymentMethod(pm)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	return out, nil
}

// === Credit cards ===

func (s *Storage) CreateCreditCard(ctx context.Context, c core.CreditCard) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	c.ID = uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO credit_cards (id, owner_id, holder_name, number_masked, balance_cents, limit_cents)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.OwnerID, c.HolderName, c.NumberMasked, c.Balance.Cents, c.Limit.Cents)
	if err != nil {
		return "", fmt.Errorf("create credit card: %w", err)
	}
	return c.ID, nil
}

func (s *Storage) ListCreditCards(ctx context.Context, ownerID string) ([]core.CreditCard, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, holder_name, number_masked, balance_cents, limit_cents
		FROM credit_cards WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list credit cards: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.CreditCard, error) {
		var c core.CreditCard
		err := row.Scan(&c.ID, &c.OwnerID, &c.HolderName, &c.NumberMasked, &c.Balance.Cents, &c.Limit.Cents)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan credit cards: %w", err)
	}
	return out, nil
}

// === Investments ===

func (s *Storage) CreateInvestment(ctx context.Context, inv core.Investment) (string, error) {
	if err := inv.Validate(); err != nil {
		return "", err
	}
	inv.ID = uuid.NewString()
	_, err := s.db.Exec(ctx, `
		INSERT INTO investments (id, owner_id, name, ticker, type, quantity, value_per_share_cents,
			average_price_cents, institution)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9)`,
		inv.ID, inv.OwnerID, inv.Name, inv.Ticker, inv.Type, inv.Quantity.String(),
		inv.ValuePerShare.Cents, inv.AveragePrice.Cents, inv.Institution)
	if err != nil {
		return "", fmt.Errorf("create investment: %w", err)
	}
	return inv.ID, nil
}

func (s *Storage) ListInvestments(ctx context.Context, ownerID string) ([]core.Investment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, name, ticker, type, quantity::text, value_per_share_cents, average_price_cents, institution
		FROM investments WHERE owner_id = $1 ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Investment, error) {
		var (
			inv core.Investment
			qty string
		)
		if err := row.Scan(&inv.ID, &inv.OwnerID, &inv.Name, &inv.Ticker, &inv.Type, &qty,
			&inv.ValuePerShare.Cents, &inv.AveragePrice.Cents, &inv.Institution); err != nil {
			return inv, err
		}
		q, err := decimal.NewFromString(qty)
		inv.Quantity = q
		return inv, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan investments: %w", err)
	}
	return out, nil
}

// === Profiles ===

// CreateProfile inserts the profile as pending, then tries to claim the
// singleton admin row in the same transaction. Concurrent claimers block on
// the primary key until the winner commits.
func (s *Storage) CreateProfile(ctx context.Context, p core.UserProfile) (core.UserProfile, error) {
	p.Role = core.RolePending
	if err := p.Validate(); err != nil {
		return core.UserProfile{}, err
	}
	if p.RegistrationDate.IsZero() {
		p.RegistrationDate = time.Now().UTC()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("%w: begin: %w", core.ErrWriteConflict, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO users (id, email, first_name, last_name, role, registration_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Email, p.FirstName, p.LastName, string(p.Role), p.RegistrationDate)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("create profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.UserProfile{}, fmt.Errorf("%w: %w: %s", core.ErrWriteConflict, core.ErrProfileExists, p.ID)
	}

	tag, err = tx.Exec(ctx, `INSERT INTO admin_claim (id, user_id) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`, p.ID)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("%w: claim admin: %w", core.ErrWriteConflict, err)
	}
	if tag.RowsAffected() == 1 {
		if _, err := tx.Exec(ctx, `UPDATE users SET role = $1 WHERE id = $2`, string(core.RoleAdmin), p.ID); err != nil {
			return core.UserProfile{}, fmt.Errorf("promote first profile: %w", err)
		}
		p.Role = core.RoleAdmin
	}

	if err := tx.Commit(ctx); err != nil {
		return core.UserProfile{}, fmt.Errorf("%w: commit: %w", core.ErrWriteConflict, err)
	}
	slog.InfoContext(ctx, "Profile saved to Postgres", "user_id", p.ID, "role", p.Role)
	return p, nil
}

const selectProfiles = `SELECT id, email, first_name, last_name, role, registration_date FROM users`

func scanProfile(row pgx.Row) (core.UserProfile, error) {
	var (
		p    core.UserProfile
		role string
	)
	if err := row.Scan(&p.ID, &p.Email, &p.FirstName, &p.LastName, &role, &p.RegistrationDate); err != nil {
		return core.UserProfile{}, err
	}
	p.Role = core.Role(role)
	return p, nil
}

func (s *Storage) GetProfile(ctx context.Context, userID string) (core.UserProfile, error) {
	p, err := scanProfile(s.db.QueryRow(ctx, selectProfiles+` WHERE id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.UserProfile{}, ledger.NotFound("user", userID)
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *Storage) ListProfiles(ctx context.Context) ([]core.UserProfile, error) {
	rows, err := s.db.Query(ctx, selectProfiles+` ORDER BY registration_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.UserProfile, error) {
		return scanProfile(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan profiles: %w", err)
	}
	return out, nil
}

func (s *Storage) SetRole(ctx context.Context, userID string, from, to core.Role) error {
	if err := ledger.CheckRoleChange(from, to); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE users SET role = $1 WHERE id = $2 AND role = $3`, string(to), userID, string(from))
	if err != nil {
		return fmt.Errorf("%w: update role: %w", core.ErrWriteConflict, err)
	}
	if tag.RowsAffected() == 1 {
		slog.InfoContext(ctx, "Role updated in Postgres", "user_id", userID, "from", from, "to", to)
		return nil
	}
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return err
	}
	return ledger.Conflict(userID, from)
}
