package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/in"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/cache"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

type updateFixture struct {
	service   *UpdateStatusService
	ops       *fakeOperationRepo
	buses     *fakeBusRepo
	publisher *fakePublisher
	locations *cache.LocationCache
	now       time.Time
}

func newUpdateFixture(t *testing.T, status domain.OperationStatus) *updateFixture {
	t.Helper()

	f := &updateFixture{
		ops:       newFakeOperationRepo(),
		buses:     newFakeBusRepo(),
		publisher: &fakePublisher{},
		locations: cache.NewLocationCache(),
		now:       time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}
	f.buses.put(&domain.Bus{
		ID:             "bus-1",
		BusNumber:      "101",
		OrganizationID: "org-1",
		TotalSeats:     45,
		OccupiedSeats:  8,
		IsOperating:    status == domain.StatusInProgress,
	})
	f.ops.put(&domain.Operation{
		OperationID:     "op-1",
		BusID:           "bus-1",
		DriverID:        "driver-1",
		OrganizationID:  "org-1",
		Status:          status,
		ScheduledStart:  f.now.Add(-2 * time.Hour),
		ScheduledEnd:    f.now.Add(-time.Hour),
		TotalPassengers: 8,
	}, 45)
	if status == domain.StatusInProgress {
		f.locations.Put(domain.DriverLocationSample{OperationID: "op-1", OrganizationID: "org-1"}, f.now)
	}

	f.service = NewUpdateStatusService(f.ops, f.buses, f.publisher, f.locations, logger.NewLogger("test"))
	f.service.now = func() time.Time { return f.now }
	return f
}

func TestUpdateStatusCompleteInProgress(t *testing.T) {
	f := newUpdateFixture(t, domain.StatusInProgress)

	op, err := f.service.Execute(context.Background(), in.UpdateStatusInput{
		OperationID: "op-1",
		NewStatus:   domain.StatusCompleted,
		Reason:      "auto-closed: abandoned operation",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, op.Status)
	require.NotNil(t, op.ActualEnd)

	// Уход из IN_PROGRESS гасит автобус и убирает точку из кэша
	bus := f.buses.get("bus-1")
	assert.False(t, bus.IsOperating)
	assert.Equal(t, 0, bus.OccupiedSeats)
	_, ok := f.locations.Get("op-1")
	assert.False(t, ok)

	assert.Equal(t, []string{"OPERATION_COMPLETED"}, f.publisher.eventTypes())
}

func TestUpdateStatusCancelScheduled(t *testing.T) {
	f := newUpdateFixture(t, domain.StatusScheduled)

	op, err := f.service.Execute(context.Background(), in.UpdateStatusInput{
		OperationID: "op-1",
		NewStatus:   domain.StatusCancelled,
		Reason:      "driver unavailable",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, op.Status)
	assert.Nil(t, op.ActualEnd)

	assert.Equal(t, []string{"OPERATION_CANCELLED"}, f.publisher.eventTypes())
}

func TestUpdateStatusRejectsInvalidTransitions(t *testing.T) {
	// SCHEDULED нельзя перевести сразу в COMPLETED
	f := newUpdateFixture(t, domain.StatusScheduled)
	_, err := f.service.Execute(context.Background(), in.UpdateStatusInput{
		OperationID: "op-1",
		NewStatus:   domain.StatusCompleted,
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindWrongState, domain.KindOf(err))
	assert.Equal(t, domain.StatusScheduled, f.ops.get("op-1").Status)
	assert.Empty(t, f.publisher.eventTypes())

	// Конечные состояния не покидаются
	f = newUpdateFixture(t, domain.StatusCompleted)
	_, err = f.service.Execute(context.Background(), in.UpdateStatusInput{
		OperationID: "op-1",
		NewStatus:   domain.StatusCancelled,
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindWrongState, domain.KindOf(err))
}

func TestUpdateStatusAppliesHints(t *testing.T) {
	f := newUpdateFixture(t, domain.StatusInProgress)

	passengers := 11
	stops := 4
	op, err := f.service.Execute(context.Background(), in.UpdateStatusInput{
		OperationID:        "op-1",
		NewStatus:          domain.StatusCompleted,
		PassengerCountHint: &passengers,
		StopsCompletedHint: &stops,
	})
	require.NoError(t, err)
	assert.Equal(t, 11, op.TotalPassengers)
	assert.Equal(t, 4, op.TotalStopsCompleted)
	assert.Equal(t, 11, f.ops.get("op-1").TotalPassengers)
}

func TestUpdateStatusNotFound(t *testing.T) {
	f := newUpdateFixture(t, domain.StatusScheduled)

	_, err := f.service.Execute(context.Background(), in.UpdateStatusInput{
		OperationID: "op-absent",
		NewStatus:   domain.StatusCancelled,
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}
