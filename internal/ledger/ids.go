package ledger

import (
	"fmt"

	"github.com/google/uuid"

	"carteira/internal/core"
)

// PrepareBatch validates records and returns copies carrying freshly
// generated ids. Called by backends at the start of every commit attempt.
func PrepareBatch(records []core.Transaction) ([]core.Transaction, core.GroupHandle, error) {
	if err := core.ValidateBatch(records); err != nil {
		return nil, core.GroupHandle{}, err
	}
	var h core.GroupHandle
	if len(records) > 1 {
		h.GroupID = uuid.NewString()
	}
	out := make([]core.Transaction, len(records))
	h.IDs = make([]string, len(records))
	for i, r := range records {
		r.ID = uuid.NewString()
		r.InstallmentGroupID = h.GroupID
		out[i] = r
		h.IDs[i] = r.ID
	}
	return out, h, nil
}

// CheckRoleChange validates a conditional role write before a backend
// applies it.
func CheckRoleChange(from, to core.Role) error {
	if !from.Valid() || !to.Valid() {
		return core.Invalid(core.ErrInvalidRole)
	}
	if !core.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, from, to)
	}
	return nil
}

// Conflict reports that userID no longer holds the expected role.
func Conflict(userID string, expected core.Role) error {
	return fmt.Errorf("%w: %w: user %s is no longer %s", core.ErrWriteConflict, core.ErrStaleRole, userID, expected)
}

// NotFound wraps what with core.ErrNotFound.
func NotFound(what, id string) error {
	return fmt.Errorf("%w: %s %s", core.ErrNotFound, what, id)
}
