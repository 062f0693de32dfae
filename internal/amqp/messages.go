package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// EventType doubles as the topic routing key.
type EventType string

const (
	EventWorkspaceCreated EventType = "workspace.created"
	EventMemberCreated    EventType = "member.created"
	EventMemberDeleted    EventType = "member.deleted"
	EventMemberTotalSet   EventType = "member.total_set"
	EventExpenseCreated   EventType = "expense.created"
	EventExpenseDeleted   EventType = "expense.deleted"
)

// BudgetEvent is a lightweight notification that an entity changed. It carries
// ids only; consumers read current state from the store.
type BudgetEvent struct {
	Type        EventType `json:"type"`
	WorkspaceID string    `json:"workspaceId,omitempty"`
	MemberID    string    `json:"memberId,omitempty"`
	ExpenseID   string    `json:"expenseId,omitempty"`
	AmountCents int64     `json:"amountCents,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

var errMissingEventType = errors.New("event type is required")

func NewBudgetEvent(t EventType) BudgetEvent {
	return BudgetEvent{Type: t, Timestamp: time.Now().UTC()}
}

// ToJSON converts the event to JSON bytes
func (e BudgetEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// BudgetEventFromJSON decodes an event, rejecting bodies without a type.
func BudgetEventFromJSON(data []byte) (BudgetEvent, error) {
	var ev BudgetEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return BudgetEvent{}, err
	}
	if ev.Type == "" {
		return BudgetEvent{}, errMissingEventType
	}
	return ev, nil
}
