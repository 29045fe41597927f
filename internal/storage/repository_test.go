package storage

import (
	"context"
	"path/filepath"
	"testing"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/ledger/storetest"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ledger.Store { return newTestRepo(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := repo.Ping(context.Background()); err != nil {
			t.Fatalf("ping %d: %v", i, err)
		}
		repo.Close()
	}
}

func TestAdminClaimSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	first, err := repo.CreateProfile(ctx, storetestProfile("u1"))
	if err != nil || first.Role != "admin" {
		t.Fatalf("first profile: %v %s", err, first.Role)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	second, err := repo.CreateProfile(ctx, storetestProfile("u2"))
	if err != nil || second.Role != "pending" {
		t.Fatalf("second profile after reopen: %v %s", err, second.Role)
	}
}

func storetestProfile(id string) core.UserProfile {
	return core.UserProfile{ID: id, Email: id + "@example.com"}
}
