package api

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomsync/shopee-collector/internal/domain/shared"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	clock := shared.NewMockClock(time.Unix(1700000000, 0))
	cb := NewCircuitBreaker(3, 30*time.Second, clock)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Call(func() error { return boom })
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Call(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := shared.NewMockClock(time.Unix(1700000000, 0))
	cb := NewCircuitBreaker(1, 30*time.Second, clock)

	_ = cb.Call(func() error { return errors.New("boom") })
	require.Equal(t, CircuitOpen, cb.State())

	clock.Advance(31 * time.Second)

	err := cb.Call(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := shared.NewMockClock(time.Unix(1700000000, 0))
	cb := NewCircuitBreaker(1, 30*time.Second, clock)

	_ = cb.Call(func() error { return errors.New("boom") })
	clock.Advance(31 * time.Second)

	_ = cb.Call(func() error { return errors.New("still down") })
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(2, 30*time.Second, nil)

	_ = cb.Call(func() error { return errors.New("boom") })
	require.NoError(t, cb.Call(func() error { return nil }))
	_ = cb.Call(func() error { return errors.New("boom") })

	assert.Equal(t, CircuitClosed, cb.State())
}
