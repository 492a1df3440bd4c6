package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), "commit", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetryExhausted(t *testing.T) {
	cause := errors.New("boom")
	calls := 0
	attempts, err := Retry(context.Background(), "commit", 3, time.Millisecond, func() error {
		calls++
		return cause
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Retry(ctx, "commit", 3, time.Hour, func() error {
		calls++
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestVerifyAddress(t *testing.T) {
	type req struct {
		Collection string `validate:"required,address"`
		TokenId    string `validate:"required,uint256"`
	}

	assert.NoError(t, Verify(&req{Collection: "0x5aeda56215b167893e80b4fe645ba6d5bab767de", TokenId: "1"}))
	assert.Error(t, Verify(&req{Collection: "0xAAA", TokenId: "1"}))
	assert.Error(t, Verify(&req{Collection: "0x5aeda56215b167893e80b4fe645ba6d5bab767de", TokenId: "-1"}))
}

func TestToValidateAddress(t *testing.T) {
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		ToValidateAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		ToValidateAddress("5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.True(t, IsAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.False(t, IsAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA"))
}

func TestMin(t *testing.T) {
	assert.Equal(t, 2, Min(2, 5))
	assert.Equal(t, 2, Min(5, 2))
}
