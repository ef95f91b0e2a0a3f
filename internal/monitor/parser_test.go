package monitor

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

var (
	alice = common.HexToAddress("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	bob   = common.HexToAddress("0x00000000219ab540356cBB839Cbe05303d7705Fa")
)

func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func amountWord(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func depositLog(from common.Address, amount *big.Int) types.Log {
	return types.Log{
		Topics: []common.Hash{DepositSignature.ID(), addressTopic(from)},
		Data:   amountWord(amount),
	}
}

func withdrawLog(to common.Address, amount *big.Int) types.Log {
	return types.Log{
		Topics: []common.Hash{WithdrawSignature.ID(), addressTopic(to)},
		Data:   amountWord(amount),
	}
}

func ownershipLog(previous, next common.Address) types.Log {
	return types.Log{
		Topics: []common.Hash{OwnershipTransferredSignature.ID(), addressTopic(previous), addressTopic(next)},
	}
}

func TestDecodeDeposit(t *testing.T) {
	decoded, err := NewLogDecoder().Decode(depositLog(alice, big.NewInt(1000)), DepositSignature)
	require.NoError(t, err)

	ev, ok := decoded.(models.DepositEvent)
	require.True(t, ok)
	assert.Equal(t, alice, ev.From)
	assert.Equal(t, "1000", ev.Amount.String())
	assert.Equal(t, models.EventTypeDeposit, decoded.Kind())
}

func TestDecodeWithdraw(t *testing.T) {
	decoded, err := NewLogDecoder().Decode(withdrawLog(bob, big.NewInt(7)), WithdrawSignature)
	require.NoError(t, err)

	ev, ok := decoded.(models.WithdrawEvent)
	require.True(t, ok)
	assert.Equal(t, bob, ev.To)
	assert.Equal(t, int64(7), ev.Amount.Int64())
}

func TestDecodeOwnershipTransferred(t *testing.T) {
	decoded, err := NewLogDecoder().Decode(ownershipLog(alice, bob), OwnershipTransferredSignature)
	require.NoError(t, err)

	ev, ok := decoded.(models.OwnershipTransferredEvent)
	require.True(t, ok)
	assert.Equal(t, alice, ev.PreviousOwner)
	assert.Equal(t, bob, ev.NewOwner)
}

func TestDecodeFullWidthAmount(t *testing.T) {
	maxUint := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	decoded, err := NewLogDecoder().Decode(depositLog(alice, maxUint), DepositSignature)
	require.NoError(t, err)
	assert.Equal(t, 0, maxUint.Cmp(decoded.(models.DepositEvent).Amount))
}

func TestDecodeZeroAddress(t *testing.T) {
	decoded, err := NewLogDecoder().Decode(ownershipLog(common.Address{}, alice), OwnershipTransferredSignature)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, decoded.(models.OwnershipTransferredEvent).PreviousOwner)
}

func TestDecodeErrors(t *testing.T) {
	dirty := addressTopic(alice)
	dirty[0] = 0x01

	tests := []struct {
		name string
		log  types.Log
		sig  *Signature
	}{
		{
			name: "too few topics",
			log:  types.Log{Topics: []common.Hash{DepositSignature.ID()}, Data: amountWord(big.NewInt(1))},
			sig:  DepositSignature,
		},
		{
			name: "no topics",
			log:  types.Log{Data: amountWord(big.NewInt(1))},
			sig:  DepositSignature,
		},
		{
			name: "extra topic",
			log: types.Log{
				Topics: []common.Hash{DepositSignature.ID(), addressTopic(alice), addressTopic(bob)},
				Data:   amountWord(big.NewInt(1)),
			},
			sig: DepositSignature,
		},
		{
			name: "ownership missing new owner",
			log:  types.Log{Topics: []common.Hash{OwnershipTransferredSignature.ID(), addressTopic(alice)}},
			sig:  OwnershipTransferredSignature,
		},
		{
			name: "wrong topic 0",
			log:  withdrawLog(alice, big.NewInt(1)),
			sig:  DepositSignature,
		},
		{
			name: "short data",
			log: types.Log{
				Topics: []common.Hash{DepositSignature.ID(), addressTopic(alice)},
				Data:   make([]byte, 31),
			},
			sig: DepositSignature,
		},
		{
			name: "long data",
			log: types.Log{
				Topics: []common.Hash{DepositSignature.ID(), addressTopic(alice)},
				Data:   make([]byte, 64),
			},
			sig: DepositSignature,
		},
		{
			name: "data on event without non-indexed params",
			log: types.Log{
				Topics: []common.Hash{OwnershipTransferredSignature.ID(), addressTopic(alice), addressTopic(bob)},
				Data:   make([]byte, 32),
			},
			sig: OwnershipTransferredSignature,
		},
		{
			name: "dirty address padding",
			log: types.Log{
				Topics: []common.Hash{DepositSignature.ID(), dirty},
				Data:   amountWord(big.NewInt(1)),
			},
			sig: DepositSignature,
		},
		{
			name: "nil signature",
			log:  depositLog(alice, big.NewInt(1)),
			sig:  nil,
		},
	}

	decoder := NewLogDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := decoder.Decode(tt.log, tt.sig)
			require.Error(t, err)
			assert.Nil(t, decoded)
			assert.True(t, utils.HasCode(err, utils.ErrCodeDecode), "got %v", err)
		})
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	transfer, err := NewSignature("TRANSFER", "Transfer",
		Param{Name: "from", Type: "address", Indexed: true},
		Param{Name: "to", Type: "address", Indexed: true},
		Param{Name: "value", Type: "uint256"},
	)
	require.NoError(t, err)

	log := types.Log{
		Topics: []common.Hash{transfer.ID(), addressTopic(alice), addressTopic(bob)},
		Data:   amountWord(big.NewInt(1)),
	}

	_, err = NewLogDecoder().Decode(log, transfer)
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeUnknownEventKind))
}

func TestDecodeIgnoresLogMetadata(t *testing.T) {
	log := depositLog(alice, big.NewInt(3))
	log.Address = bob
	log.BlockNumber = 99
	log.Removed = true

	decoded, err := NewLogDecoder().Decode(log, DepositSignature)
	require.NoError(t, err)
	assert.Equal(t, alice, decoded.(models.DepositEvent).From)
}
