package token

import (
	"encoding/hex"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerificationCode_SixDigitsInRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := NewVerificationCode()
		require.NoError(t, err)
		require.Len(t, code, 6)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, codeMin)
		assert.LessOrEqual(t, n, codeMax)
	}
}

func TestNewResetToken_HexOfExpectedLength(t *testing.T) {
	tok, err := NewResetToken()
	require.NoError(t, err)
	assert.Len(t, tok, ResetTokenBytes*2)

	_, err = hex.DecodeString(tok)
	assert.NoError(t, err)
}

func TestNewResetToken_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok, err := NewResetToken()
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup)
		seen[tok] = struct{}{}
	}
}
