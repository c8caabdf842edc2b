package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []OperationStatus{StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled}

	allowed := map[OperationStatus]map[OperationStatus]bool{
		StatusScheduled:  {StatusInProgress: true, StatusCancelled: true},
		StatusInProgress: {StatusCompleted: true},
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestOperationStatusIsTerminal(t *testing.T) {
	assert.False(t, OperationStatus(StatusScheduled).IsTerminal())
	assert.False(t, OperationStatus(StatusInProgress).IsTerminal())
	assert.True(t, OperationStatus(StatusCompleted).IsTerminal())
	assert.True(t, OperationStatus(StatusCancelled).IsTerminal())
}

func TestOperationTransition(t *testing.T) {
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	op := &Operation{OperationID: "op-1", Status: StatusScheduled}
	require.NoError(t, op.Transition(StatusInProgress, now))
	assert.Equal(t, StatusInProgress, op.Status)
	require.NotNil(t, op.ActualStart)
	assert.Equal(t, now, *op.ActualStart)
	assert.Equal(t, now, op.UpdatedAt)
	assert.Nil(t, op.ActualEnd)

	later := now.Add(45 * time.Minute)
	require.NoError(t, op.Transition(StatusCompleted, later))
	assert.Equal(t, StatusCompleted, op.Status)
	require.NotNil(t, op.ActualEnd)
	assert.Equal(t, later, *op.ActualEnd)

	// Конечные состояния не покидаются
	err := op.Transition(StatusInProgress, later)
	require.Error(t, err)
	assert.Equal(t, KindWrongState, KindOf(err))
}

func TestOperationTransitionRejectsInvalid(t *testing.T) {
	now := time.Now().UTC()

	op := &Operation{OperationID: "op-1", Status: StatusScheduled}
	err := op.Transition(StatusCompleted, now)
	require.Error(t, err)
	assert.Equal(t, KindWrongState, KindOf(err))
	assert.Equal(t, StatusScheduled, op.Status)
	assert.Nil(t, op.ActualEnd)

	err = op.Transition(OperationStatus("PAUSED"), now)
	require.Error(t, err)
	assert.Equal(t, KindWrongState, KindOf(err))
}

func TestOperationTransitionCancel(t *testing.T) {
	now := time.Now().UTC()

	op := &Operation{OperationID: "op-1", Status: StatusScheduled}
	require.NoError(t, op.Transition(StatusCancelled, now))
	assert.Equal(t, StatusCancelled, op.Status)
	assert.Nil(t, op.ActualStart)
	assert.Nil(t, op.ActualEnd)

	// IN_PROGRESS отменить нельзя, только завершить
	op = &Operation{OperationID: "op-2", Status: StatusInProgress}
	err := op.Transition(StatusCancelled, now)
	require.Error(t, err)
	assert.Equal(t, KindWrongState, KindOf(err))
}

func TestDomainErrorKinds(t *testing.T) {
	assert.Equal(t, KindCapacity, KindOf(ErrCapacity("bus is full")))
	assert.Equal(t, KindAuthz, KindOf(ErrAuthz("wrong driver")))
	assert.Equal(t, ErrorKind(""), KindOf(assert.AnError))

	// errors.Is сравнивает по Kind
	assert.ErrorIs(t, ErrNotFound("operation x not found"), ErrOperationNotFound)
}
