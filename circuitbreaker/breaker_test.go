package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAtThreshold(t *testing.T) {
	b := New("svc", Config{FailureThreshold: 3, WindowSize: 10, OpenTimeout: time.Second, SuccessThreshold: 1}, nil)

	for i := 0; i < 2; i++ {
		require.True(t, b.CanExecute())
		b.RecordFailure()
	}
	assert.Equal(t, Closed, b.State())

	require.True(t, b.CanExecute())
	b.RecordFailure()
	assert.Equal(t, Open, b.State())
	assert.False(t, b.CanExecute())
}

func TestBreaker_RecoveryCycle(t *testing.T) {
	now := time.Now()
	clk := now
	b := New("svc", Config{
		FailureThreshold: 3, WindowSize: 10, OpenTimeout: time.Second, SuccessThreshold: 2,
	}, nil, WithClock(func() time.Time { return clk }))

	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	require.Equal(t, Open, b.State())
	require.False(t, b.CanExecute())

	clk = clk.Add(1100 * time.Millisecond)
	require.True(t, b.CanExecute())
	require.Equal(t, HalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, HalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	clk := time.Now()
	b := New("svc", Config{FailureThreshold: 1, WindowSize: 5, OpenTimeout: time.Millisecond, SuccessThreshold: 1},
		nil, WithClock(func() time.Time { return clk }))

	b.RecordFailure()
	require.Equal(t, Open, b.State())

	clk = clk.Add(5 * time.Millisecond)
	require.True(t, b.CanExecute())
	require.Equal(t, HalfOpen, b.State())

	b.RecordFailure()
	assert.Equal(t, Open, b.State())
}

func TestBreaker_ExecuteSwallowsExcludedErrors(t *testing.T) {
	errValidation := errors.New("invalid request")
	b := New("svc", Config{
		FailureThreshold: 1, WindowSize: 5, OpenTimeout: time.Second, SuccessThreshold: 1,
		ExcludedErrors: func(err error) bool { return errors.Is(err, errValidation) },
	}, nil)

	err := b.Execute(context.Background(), func(context.Context) error { return errValidation })
	assert.ErrorIs(t, err, errValidation)
	assert.Equal(t, Closed, b.State())
}

func TestRegistry_GetOrCreateReturnsSameInstance(t *testing.T) {
	reg := NewRegistry(DefaultConfig(), nil, nil)
	a := reg.GetOrCreate("svc")
	b := reg.GetOrCreate("svc")
	assert.Same(t, a, b)
}

func TestRegistry_ResetAll(t *testing.T) {
	reg := NewRegistry(Config{FailureThreshold: 1, WindowSize: 5, OpenTimeout: time.Minute, SuccessThreshold: 1}, nil, nil)
	b := reg.GetOrCreate("svc")
	b.RecordFailure()
	require.Equal(t, Open, b.State())

	reg.ResetAll()
	assert.Equal(t, Closed, b.State())
	assert.Empty(t, reg.Open())
}
