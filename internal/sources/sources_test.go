package sources

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateGate(t *testing.T) {
	t.Run("first request passes immediately", func(t *testing.T) {
		gate := NewRateGate(time.Hour)

		start := time.Now()
		require.NoError(t, gate.Wait(context.Background()))
		assert.Less(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("waits out the interval after a stamp", func(t *testing.T) {
		gate := NewRateGate(50 * time.Millisecond)
		gate.Stamp()

		start := time.Now()
		require.NoError(t, gate.Wait(context.Background()))
		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("canceled context aborts the wait", func(t *testing.T) {
		gate := NewRateGate(time.Hour)
		gate.Stamp()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := gate.Wait(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestWithRetry(t *testing.T) {
	t.Run("success needs one attempt", func(t *testing.T) {
		calls := 0
		err := WithRetry(func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("transport errors are retried", func(t *testing.T) {
		calls := 0
		err := WithRetry(func() error {
			calls++
			if calls == 1 {
				return &TransportError{Err: fmt.Errorf("connection reset")}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("protocol errors abort immediately", func(t *testing.T) {
		calls := 0
		err := WithRetry(func() error {
			calls++
			return &ProtocolError{StatusCode: 403, Message: "forbidden"}
		})

		var protoErr *ProtocolError
		require.ErrorAs(t, err, &protoErr)
		assert.Equal(t, 403, protoErr.StatusCode)
		assert.Equal(t, 1, calls)
	})

	t.Run("parse errors abort immediately", func(t *testing.T) {
		calls := 0
		err := WithRetry(func() error {
			calls++
			return &ParseError{Err: errors.New("unexpected EOF")}
		})

		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, 1, calls)
	})

	t.Run("missing anchor is permanent", func(t *testing.T) {
		calls := 0
		err := WithRetry(func() error {
			calls++
			return ErrMissingAnchor
		})
		require.ErrorIs(t, err, ErrMissingAnchor)
		assert.Equal(t, 1, calls)
	})
}
