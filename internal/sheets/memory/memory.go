package memory

import (
	"context"
	"fmt"
	"sync"

	"carteira/internal/core"
	ports "carteira/internal/sheets"
)

var _ ports.LedgerExporter = (*Store)(nil)

// Store keeps exported rows in memory. Used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Store {
	return &Store{}
}

// AppendTransactions stores the rows and returns a synthetic row reference.
func (s *Store) AppendTransactions(_ context.Context, txs []core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.rows) + 1
	for _, t := range txs {
		s.rows = append(s.rows, ports.Row(t))
	}
	return fmt.Sprintf("mem:%d-%d", start, len(s.rows)), nil
}

// Rows returns a copy of everything exported so far.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	copy(out, s.rows)
	return out
}
