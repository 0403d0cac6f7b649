package token

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessCode_SixDigitsInRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := NewAccessCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestNewAccessCode_Varies(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		code, err := NewAccessCode()
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}

func TestNewOpaque_Length(t *testing.T) {
	tok, err := NewOpaque()
	require.NoError(t, err)
	assert.Len(t, tok, 64)
}

func TestHash(t *testing.T) {
	h := Hash("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)
	assert.NotEqual(t, h, Hash("abd"))
}
