package monitor

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/event-indexer/internal/models"
)

func TestSignatureCanonicalForms(t *testing.T) {
	tests := []struct {
		sig       *Signature
		canonical string
		kind      models.EventType
		indexed   int
	}{
		{DepositSignature, "Deposit(address,uint256)", models.EventTypeDeposit, 1},
		{WithdrawSignature, "Withdraw(address,uint256)", models.EventTypeWithdraw, 1},
		{OwnershipTransferredSignature, "OwnershipTransferred(address,address)", models.EventTypeOwnershipTransferred, 2},
	}

	for _, tt := range tests {
		t.Run(tt.canonical, func(t *testing.T) {
			assert.Equal(t, tt.canonical, tt.sig.String())
			assert.Equal(t, crypto.Keccak256Hash([]byte(tt.canonical)), tt.sig.ID())
			assert.Equal(t, tt.kind, tt.sig.Kind)
			assert.Equal(t, tt.indexed, tt.sig.IndexedCount())
		})
	}
}

func TestWellKnownTopics(t *testing.T) {
	assert.Equal(t,
		common.HexToHash("0xe1fffcc4923d04b559f4d29a8bfc6cda04eb5b0d3c460751c2402c5c5cc9109c"),
		DepositSignature.ID())
	assert.Equal(t,
		common.HexToHash("0x8be0079c531659141344cd1fd0a4f28419497f9722a3daafe3b4186f6b6457e0"),
		OwnershipTransferredSignature.ID())
}

func TestSignaturesOrder(t *testing.T) {
	sigs := Signatures()
	require.Len(t, sigs, 3)
	assert.Equal(t, "Deposit", sigs[0].Name)
	assert.Equal(t, "Withdraw", sigs[1].Name)
	assert.Equal(t, "OwnershipTransferred", sigs[2].Name)
}

func TestParamsReturnsCopy(t *testing.T) {
	params := DepositSignature.Params()
	require.Len(t, params, 2)
	assert.Equal(t, Param{Name: "from", Type: "address", Indexed: true}, params[0])

	params[0].Name = "changed"
	assert.Equal(t, "from", DepositSignature.Params()[0].Name)
}

func TestNewSignatureRejectsUnsupportedTypes(t *testing.T) {
	_, err := NewSignature(models.EventTypeDeposit, "Deposit",
		Param{Name: "memo", Type: "string"})
	assert.Error(t, err)

	_, err = NewSignature(models.EventTypeDeposit, "")
	assert.Error(t, err)
}

func TestFilterQuery(t *testing.T) {
	contract := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	q := WithdrawSignature.FilterQuery(contract)

	assert.Nil(t, q.FromBlock)
	assert.Nil(t, q.ToBlock)
	assert.Equal(t, []common.Address{contract}, q.Addresses)
	require.Len(t, q.Topics, 1)
	assert.Equal(t, []common.Hash{WithdrawSignature.ID()}, q.Topics[0])
}
