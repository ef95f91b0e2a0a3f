package models

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// EventType identifies one of the contract event kinds the indexer understands
type EventType string

const (
	EventTypeDeposit              EventType = "DEPOSIT"
	EventTypeWithdraw             EventType = "WITHDRAW"
	EventTypeOwnershipTransferred EventType = "OWNERSHIPTRANSFERRED"
)

// EventTypes lists the known kinds in declaration order
func EventTypes() []EventType {
	return []EventType{EventTypeDeposit, EventTypeWithdraw, EventTypeOwnershipTransferred}
}

// ParseEventType parses a case-insensitive event type name
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown event type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the known kinds
func (t EventType) Valid() bool {
	switch t {
	case EventTypeDeposit, EventTypeWithdraw, EventTypeOwnershipTransferred:
		return true
	}
	return false
}

func (t EventType) String() string {
	return string(t)
}

// EventRecord is the flat, storage-compatible shape of a decoded event.
// Only the fields relevant to EventType are populated.
type EventRecord struct {
	ID            int64     `json:"id" db:"id"`
	EventType     EventType `json:"eventType" db:"event_type"`
	Amount        *big.Int  `json:"amount" db:"amount"`
	FromAddress   *string   `json:"fromAddress" db:"from_address"`
	ToAddress     *string   `json:"toAddress" db:"to_address"`
	PreviousOwner *string   `json:"previousOwner" db:"previous_owner"`
	NewOwner      *string   `json:"newOwner" db:"new_owner"`
}

// Validate checks that exactly the kind-relevant fields are set
func (r *EventRecord) Validate() error {
	present := map[string]bool{
		"amount":        r.Amount != nil,
		"fromAddress":   r.FromAddress != nil,
		"toAddress":     r.ToAddress != nil,
		"previousOwner": r.PreviousOwner != nil,
		"newOwner":      r.NewOwner != nil,
	}

	var want []string
	switch r.EventType {
	case EventTypeDeposit:
		want = []string{"amount", "fromAddress"}
	case EventTypeWithdraw:
		want = []string{"amount", "toAddress"}
	case EventTypeOwnershipTransferred:
		want = []string{"previousOwner", "newOwner"}
	default:
		return fmt.Errorf("unknown event type %q", r.EventType)
	}

	for _, field := range want {
		if !present[field] {
			return fmt.Errorf("%s record is missing %s", r.EventType, field)
		}
		delete(present, field)
	}
	for field, set := range present {
		if set {
			return fmt.Errorf("%s record must not carry %s", r.EventType, field)
		}
	}
	if r.Amount != nil && r.Amount.Sign() < 0 {
		return fmt.Errorf("amount must be unsigned, got %s", r.Amount)
	}
	return nil
}

// Clone returns a deep copy so stored records cannot be mutated through returned values
func (r *EventRecord) Clone() *EventRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Amount != nil {
		c.Amount = new(big.Int).Set(r.Amount)
	}
	c.FromAddress = cloneString(r.FromAddress)
	c.ToAddress = cloneString(r.ToAddress)
	c.PreviousOwner = cloneString(r.PreviousOwner)
	c.NewOwner = cloneString(r.NewOwner)
	return &c
}

// Summary renders the kind-specific fields for log lines
func (r *EventRecord) Summary() map[string]interface{} {
	fields := map[string]interface{}{"event_type": r.EventType.String()}
	if r.ID != 0 {
		fields["id"] = r.ID
	}
	if r.Amount != nil {
		fields["amount"] = r.Amount.String()
	}
	if r.FromAddress != nil {
		fields["from"] = *r.FromAddress
	}
	if r.ToAddress != nil {
		fields["to"] = *r.ToAddress
	}
	if r.PreviousOwner != nil {
		fields["previous_owner"] = *r.PreviousOwner
	}
	if r.NewOwner != nil {
		fields["new_owner"] = *r.NewOwner
	}
	return fields
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// DecodedEvent is the in-memory result of decoding one log. It is one of
// DepositEvent, WithdrawEvent or OwnershipTransferredEvent.
type DecodedEvent interface {
	Kind() EventType
}

// DepositEvent is Deposit(address indexed from, uint256 amount)
type DepositEvent struct {
	From   common.Address
	Amount *big.Int
}

// WithdrawEvent is Withdraw(address indexed to, uint256 amount)
type WithdrawEvent struct {
	To     common.Address
	Amount *big.Int
}

// OwnershipTransferredEvent is OwnershipTransferred(address indexed previousOwner, address indexed newOwner)
type OwnershipTransferredEvent struct {
	PreviousOwner common.Address
	NewOwner      common.Address
}

func (DepositEvent) Kind() EventType              { return EventTypeDeposit }
func (WithdrawEvent) Kind() EventType             { return EventTypeWithdraw }
func (OwnershipTransferredEvent) Kind() EventType { return EventTypeOwnershipTransferred }
