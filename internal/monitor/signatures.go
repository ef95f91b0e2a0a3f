package monitor

import (
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/smartdevs17/event-indexer/internal/models"
)

// Param is one declared event parameter
type Param struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed"`
}

// Signature describes one contract event: its kind, name and ordered
// parameters, plus the derived ABI event used for topic matching and decoding.
// A Signature is immutable once built.
type Signature struct {
	Kind   models.EventType
	Name   string
	params []Param
	event  abi.Event
}

var (
	DepositSignature = mustSignature(models.EventTypeDeposit, "Deposit",
		Param{Name: "from", Type: "address", Indexed: true},
		Param{Name: "amount", Type: "uint256"},
	)
	WithdrawSignature = mustSignature(models.EventTypeWithdraw, "Withdraw",
		Param{Name: "to", Type: "address", Indexed: true},
		Param{Name: "amount", Type: "uint256"},
	)
	OwnershipTransferredSignature = mustSignature(models.EventTypeOwnershipTransferred, "OwnershipTransferred",
		Param{Name: "previousOwner", Type: "address", Indexed: true},
		Param{Name: "newOwner", Type: "address", Indexed: true},
	)
)

// Signatures returns the indexed events in subscription order
func Signatures() []*Signature {
	return []*Signature{DepositSignature, WithdrawSignature, OwnershipTransferredSignature}
}

// NewSignature builds an event descriptor. Only address and uint256
// parameters are supported.
func NewSignature(kind models.EventType, name string, params ...Param) (*Signature, error) {
	if name == "" {
		return nil, fmt.Errorf("event name is required")
	}

	args := make(abi.Arguments, 0, len(params))
	for _, p := range params {
		if p.Type != "address" && p.Type != "uint256" {
			return nil, fmt.Errorf("unsupported parameter type %q for %s.%s", p.Type, name, p.Name)
		}
		typ, err := abi.NewType(p.Type, "", nil)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter type %q: %w", p.Type, err)
		}
		args = append(args, abi.Argument{Name: p.Name, Type: typ, Indexed: p.Indexed})
	}

	return &Signature{
		Kind:   kind,
		Name:   name,
		params: append([]Param(nil), params...),
		event:  abi.NewEvent(name, name, false, args),
	}, nil
}

func mustSignature(kind models.EventType, name string, params ...Param) *Signature {
	sig, err := NewSignature(kind, name, params...)
	if err != nil {
		panic(err)
	}
	return sig
}

// ID is topic 0: keccak256 of the canonical signature
func (s *Signature) ID() common.Hash {
	return s.event.ID
}

// String returns the canonical form, e.g. Deposit(address,uint256)
func (s *Signature) String() string {
	return s.event.Sig
}

// Params returns a copy of the declared parameters
func (s *Signature) Params() []Param {
	return append([]Param(nil), s.params...)
}

// IndexedCount is the number of parameters carried in topics
func (s *Signature) IndexedCount() int {
	n := 0
	for _, p := range s.params {
		if p.Indexed {
			n++
		}
	}
	return n
}

// FilterQuery selects this event on contract, starting from the latest block
func (s *Signature) FilterQuery(contract common.Address) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{contract},
		Topics:    [][]common.Hash{{s.ID()}},
	}
}
