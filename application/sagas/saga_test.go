package sagas

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSaga_CompletesAllSteps(t *testing.T) {
	var order []string
	saga := NewSaga("test", zap.NewNop()).
		Step("first", func(context.Context) error { order = append(order, "first"); return nil }, nil).
		Step("second", func(context.Context) error { order = append(order, "second"); return nil }, nil)

	require.NoError(t, saga.Execute(context.Background()))
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, SagaStateCompleted, saga.GetState())
}

func TestSaga_CompensatesInReverse(t *testing.T) {
	boom := errors.New("boom")
	var undone []string

	saga := NewSaga("test", zap.NewNop()).
		Step("a", func(context.Context) error { return nil }, func(context.Context) error { undone = append(undone, "a"); return nil }).
		Step("b", func(context.Context) error { return nil }, func(context.Context) error { undone = append(undone, "b"); return nil }).
		Step("c", func(context.Context) error { return boom }, func(context.Context) error { undone = append(undone, "c"); return nil })

	err := saga.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"b", "a"}, undone)
	assert.Equal(t, SagaStateCompensated, saga.GetState())
	assert.Equal(t, 2, saga.GetCurrentStep())
}

func TestSaga_RetriesStep(t *testing.T) {
	attempts := 0
	saga := NewSaga("retry", zap.NewNop()).AddStep(SagaStep{
		Name:       "flaky",
		MaxRetries: 3,
		Execute: func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		},
	})

	require.NoError(t, saga.Execute(context.Background()))
	assert.Equal(t, 3, attempts)
}

func TestSaga_ReportsFailedCompensation(t *testing.T) {
	saga := NewSaga("broken", zap.NewNop()).
		Step("a", func(context.Context) error { return nil }, func(context.Context) error { return errors.New("stuck") }).
		Step("b", func(context.Context) error { return errors.New("boom") }, nil)

	err := saga.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 compensations failed")
	assert.Equal(t, SagaStateCompensating, saga.GetState())
}
