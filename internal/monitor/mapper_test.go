package monitor

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/event-indexer/internal/models"
	"github.com/smartdevs17/event-indexer/pkg/utils"
)

type transferEvent struct{}

func (transferEvent) Kind() models.EventType { return "TRANSFER" }

func TestMapDeposit(t *testing.T) {
	amount := big.NewInt(1000)
	record, err := MapEvent(models.DepositEvent{From: alice, Amount: amount})
	require.NoError(t, err)

	assert.Equal(t, models.EventTypeDeposit, record.EventType)
	assert.Equal(t, int64(0), record.ID)
	assert.Equal(t, "1000", record.Amount.String())
	require.NotNil(t, record.FromAddress)
	assert.Equal(t, "0xab5801a7d398351b8be11c439e05c5b3259aec9b", *record.FromAddress)
	assert.Nil(t, record.ToAddress)
	assert.Nil(t, record.PreviousOwner)
	assert.Nil(t, record.NewOwner)
	assert.NoError(t, record.Validate())

	// The record owns its amount
	amount.SetInt64(1)
	assert.Equal(t, "1000", record.Amount.String())
}

func TestMapWithdraw(t *testing.T) {
	record, err := MapEvent(models.WithdrawEvent{To: bob, Amount: big.NewInt(5)})
	require.NoError(t, err)

	assert.Equal(t, models.EventTypeWithdraw, record.EventType)
	require.NotNil(t, record.ToAddress)
	assert.Equal(t, "0x00000000219ab540356cbb839cbe05303d7705fa", *record.ToAddress)
	assert.Nil(t, record.FromAddress)
	assert.NoError(t, record.Validate())
}

func TestMapOwnershipTransferred(t *testing.T) {
	record, err := MapEvent(models.OwnershipTransferredEvent{PreviousOwner: alice, NewOwner: bob})
	require.NoError(t, err)

	assert.Equal(t, models.EventTypeOwnershipTransferred, record.EventType)
	assert.Nil(t, record.Amount)
	require.NotNil(t, record.PreviousOwner)
	require.NotNil(t, record.NewOwner)
	assert.Equal(t, utils.AddressString(alice), *record.PreviousOwner)
	assert.Equal(t, utils.AddressString(bob), *record.NewOwner)
	assert.NoError(t, record.Validate())
}

func TestMapUnknownVariant(t *testing.T) {
	_, err := MapEvent(transferEvent{})
	require.Error(t, err)
	assert.True(t, utils.HasCode(err, utils.ErrCodeUnknownEventKind))

	_, err = MapEvent(nil)
	assert.True(t, utils.HasCode(err, utils.ErrCodeUnknownEventKind))
}

func TestDecodeThenMap(t *testing.T) {
	decoded, err := NewLogDecoder().Decode(depositLog(alice, big.NewInt(42)), DepositSignature)
	require.NoError(t, err)

	record, err := MapEvent(decoded)
	require.NoError(t, err)
	assert.Equal(t, "42", record.Amount.String())
	assert.Equal(t, utils.AddressString(alice), *record.FromAddress)
}
