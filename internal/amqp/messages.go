package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventGroupCommitted     EventType = "ledger.group_committed"
	EventTransactionCreated EventType = "ledger.transaction_created"
	EventRoleChanged        EventType = "entitlement.role_changed"
)

// LedgerEvent is published after a ledger or entitlement write has been
// committed. It carries ids only; consumers read the records back from the
// store.
type LedgerEvent struct {
	Type           EventType `json:"type"`
	OwnerID        string    `json:"owner_id"`
	GroupID        string    `json:"group_id,omitempty"`
	TransactionIDs []string  `json:"transaction_ids,omitempty"`
	RoleFrom       string    `json:"role_from,omitempty"`
	RoleTo         string    `json:"role_to,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewCommitEvent describes a committed batch. A batch without group id is a
// single transaction.
func NewCommitEvent(ownerID, groupID string, ids []string) *LedgerEvent {
	t := EventGroupCommitted
	if groupID == "" {
		t = EventTransactionCreated
	}
	return &LedgerEvent{
		Type:           t,
		OwnerID:        ownerID,
		GroupID:        groupID,
		TransactionIDs: append([]string(nil), ids...),
		Timestamp:      time.Now(),
	}
}

func NewRoleChangedEvent(userID, from, to string) *LedgerEvent {
	return &LedgerEvent{
		Type:      EventRoleChanged,
		OwnerID:   userID,
		RoleFrom:  from,
		RoleTo:    to,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventFromJSON decodes and sanity-checks a message body.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventGroupCommitted, EventTransactionCreated, EventRoleChanged:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.OwnerID == "" {
		return nil, fmt.Errorf("event %s without owner", msg.Type)
	}
	return &msg, nil
}
