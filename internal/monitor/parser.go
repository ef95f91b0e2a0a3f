package monitor

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

const wordSize = 32

var zeroPadding = make([]byte, wordSize-common.AddressLength)

// Decoder turns a raw log into a typed event
type Decoder interface {
	Decode(log types.Log, sig *Signature) (models.DecodedEvent, error)
}

// LogDecoder decodes logs against a Signature. It holds no state.
type LogDecoder struct{}

// NewLogDecoder creates a log decoder
func NewLogDecoder() *LogDecoder {
	return &LogDecoder{}
}

// Decode extracts the signature's parameters from log. Indexed parameters come
// from topics[1:] in declaration order; the rest are ABI-decoded from data.
func (d *LogDecoder) Decode(log types.Log, sig *Signature) (models.DecodedEvent, error) {
	if sig == nil {
		return nil, utils.NewAppError(utils.ErrCodeDecode, "No signature to decode against")
	}
	if !sig.Kind.Valid() {
		return nil, utils.NewAppError(utils.ErrCodeUnknownEventKind,
			"Unsupported event kind", fmt.Sprintf("kind=%s signature=%s", sig.Kind, sig))
	}

	values, err := d.decodeValues(log, sig)
	if err != nil {
		return nil, err
	}

	switch sig.Kind {
	case models.EventTypeDeposit:
		from, err := addressValue(values, "from")
		if err != nil {
			return nil, err
		}
		amount, err := uintValue(values, "amount")
		if err != nil {
			return nil, err
		}
		return models.DepositEvent{From: from, Amount: amount}, nil

	case models.EventTypeWithdraw:
		to, err := addressValue(values, "to")
		if err != nil {
			return nil, err
		}
		amount, err := uintValue(values, "amount")
		if err != nil {
			return nil, err
		}
		return models.WithdrawEvent{To: to, Amount: amount}, nil

	default:
		previous, err := addressValue(values, "previousOwner")
		if err != nil {
			return nil, err
		}
		next, err := addressValue(values, "newOwner")
		if err != nil {
			return nil, err
		}
		return models.OwnershipTransferredEvent{PreviousOwner: previous, NewOwner: next}, nil
	}
}

// decodeValues maps parameter names to decoded Go values
func (d *LogDecoder) decodeValues(log types.Log, sig *Signature) (map[string]interface{}, error) {
	indexed := sig.IndexedCount()
	if len(log.Topics) != 1+indexed {
		return nil, decodeError(sig, "topic count mismatch",
			fmt.Sprintf("expected %d topics, got %d", 1+indexed, len(log.Topics)))
	}
	if log.Topics[0] != sig.ID() {
		return nil, decodeError(sig, "topic 0 does not match signature",
			fmt.Sprintf("expected %s, got %s", sig.ID().Hex(), log.Topics[0].Hex()))
	}

	nonIndexed := len(sig.params) - indexed
	if len(log.Data) != wordSize*nonIndexed {
		return nil, decodeError(sig, "data length mismatch",
			fmt.Sprintf("expected %d bytes, got %d", wordSize*nonIndexed, len(log.Data)))
	}

	values := make(map[string]interface{}, len(sig.params))

	topic := 1
	word := 0
	for _, p := range sig.params {
		if p.Indexed {
			v, err := decodeWord(sig, p, log.Topics[topic].Bytes())
			if err != nil {
				return nil, err
			}
			values[p.Name] = v
			topic++
			continue
		}
		if p.Type == "address" {
			if _, err := decodeWord(sig, p, log.Data[word*wordSize:(word+1)*wordSize]); err != nil {
				return nil, err
			}
		}
		word++
	}

	if nonIndexed > 0 {
		if err := sig.event.Inputs.NonIndexed().UnpackIntoMap(values, log.Data); err != nil {
			return nil, decodeError(sig, "failed to unpack data", err.Error())
		}
	}

	return values, nil
}

// decodeWord reads one 32-byte word as the parameter's type
func decodeWord(sig *Signature, p Param, word []byte) (interface{}, error) {
	switch p.Type {
	case "address":
		if !bytes.Equal(word[:len(zeroPadding)], zeroPadding) {
			return nil, decodeError(sig, "address word has non-zero padding", p.Name)
		}
		return common.BytesToAddress(word[len(zeroPadding):]), nil
	case "uint256":
		return new(big.Int).SetBytes(word), nil
	}
	return nil, decodeError(sig, "unsupported parameter type", p.Type)
}

func addressValue(values map[string]interface{}, name string) (common.Address, error) {
	v, ok := values[name].(common.Address)
	if !ok {
		return common.Address{}, utils.NewAppError(utils.ErrCodeDecode, "Missing address parameter", name)
	}
	return v, nil
}

func uintValue(values map[string]interface{}, name string) (*big.Int, error) {
	v, ok := values[name].(*big.Int)
	if !ok || v == nil {
		return nil, utils.NewAppError(utils.ErrCodeDecode, "Missing uint256 parameter", name)
	}
	return v, nil
}

func decodeError(sig *Signature, message, details string) error {
	return utils.NewAppError(utils.ErrCodeDecode,
		fmt.Sprintf("Failed to decode %s: %s", sig.Name, message), details)
}
