package backend

import (
	"context"
	"path/filepath"
	"testing"

	"carteira/internal/config"
	"carteira/internal/log"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://x"})
	if err != nil || cfg.Type != PostgresBackend || cfg.DatabaseURL != "postgres://x" {
		t.Fatalf("FromAppConfig = %+v, %v", cfg, err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"unknown", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFactoryOpen(t *testing.T) {
	f := NewFactory(log.Discard())
	ctx := context.Background()

	mem, err := f.Open(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if mem.Ping != nil {
		t.Error("memory store should not expose Ping")
	}
	mem.Store.Close()

	lite, err := f.Open(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "ledger.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer lite.Store.Close()
	if lite.Ping == nil {
		t.Fatal("sqlite store should expose Ping")
	}
	if err := lite.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}
