package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorFormatting(t *testing.T) {
	err := NewAppError(ErrCodeDecode, "Topic count mismatch", "expected 2, got 1")
	assert.Equal(t, "DECODE_ERROR: Topic count mismatch (expected 2, got 1)", err.Error())

	bare := NewAppError(ErrCodeInternal, "Boom")
	assert.Equal(t, "INTERNAL_ERROR: Boom", bare.Error())
	assert.NotEmpty(t, bare.File)
}

func TestHasCodeFollowsChain(t *testing.T) {
	root := errors.New("connection reset")
	stream := WrapAppError(ErrCodeStream, "Log stream ended", root)
	wrapped := fmt.Errorf("subscription deposit: %w", stream)

	assert.True(t, HasCode(wrapped, ErrCodeStream))
	assert.False(t, HasCode(wrapped, ErrCodeDecode))
	assert.ErrorIs(t, wrapped, root)

	nested := WrapAppError(ErrCodeDatabase, "Failed to save event", NewAppError(ErrCodeValidation, "bad record"))
	assert.True(t, HasCode(nested, ErrCodeValidation))
	assert.False(t, HasCode(root, ErrCodeStream))
	assert.False(t, HasCode(nil, ErrCodeStream))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", NormalizeAddress("ABCDEF0000000000000000000000000000000001"))
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", NormalizeAddress("0xABCDEF0000000000000000000000000000000001"))
	assert.True(t, IsValidAddress("0xabcdef0000000000000000000000000000000001"))
	assert.False(t, IsValidAddress("0x1234"))
}

func TestGetEventSignature(t *testing.T) {
	// keccak256("Transfer(address,address,uint256)")
	assert.Equal(t,
		"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		GetEventSignature("Transfer(address,address,uint256)"))
}
