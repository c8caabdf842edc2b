package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/in"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

type adjustFixture struct {
	service     *AdjustPassengersService
	ops         *fakeOperationRepo
	buses       *fakeBusRepo
	broadcaster *fakeBroadcaster
}

func newAdjustFixture(t *testing.T, passengers, seats int) *adjustFixture {
	t.Helper()

	f := &adjustFixture{
		ops:         newFakeOperationRepo(),
		buses:       newFakeBusRepo(),
		broadcaster: &fakeBroadcaster{},
	}
	f.buses.put(&domain.Bus{
		ID:             "bus-1",
		BusNumber:      "101",
		OrganizationID: "org-1",
		TotalSeats:     seats,
		OccupiedSeats:  passengers,
		IsOperating:    true,
	})
	f.ops.put(&domain.Operation{
		OperationID:     "op-1",
		BusID:           "bus-1",
		OrganizationID:  "org-1",
		Status:          domain.StatusInProgress,
		TotalPassengers: passengers,
	}, seats)

	f.service = NewAdjustPassengersService(f.ops, f.buses, f.broadcaster, logger.NewLogger("test"))
	return f
}

func TestAdjustPassengersIncrement(t *testing.T) {
	f := newAdjustFixture(t, 5, 45)

	count, err := f.service.Execute(context.Background(), in.AdjustPassengersInput{OperationID: "op-1", Delta: +1})
	require.NoError(t, err)
	assert.Equal(t, 6, count)
	assert.Equal(t, 6, f.ops.get("op-1").TotalPassengers)

	// Зеркало на автобусе и рассылка мест
	assert.Equal(t, 6, f.buses.get("bus-1").OccupiedSeats)
	require.Equal(t, 1, f.broadcaster.broadcastCount())
	assert.Equal(t, 39, f.broadcaster.broadcast[0].AvailableSeats)
}

func TestAdjustPassengersZeroDelta(t *testing.T) {
	f := newAdjustFixture(t, 5, 45)

	_, err := f.service.Execute(context.Background(), in.AdjustPassengersInput{OperationID: "op-1", Delta: 0})
	require.Error(t, err)
	assert.Equal(t, domain.KindCapacity, domain.KindOf(err))
}

func TestAdjustPassengersCapacityBounds(t *testing.T) {
	f := newAdjustFixture(t, 45, 45)

	// Полный автобус — посадка отклоняется
	_, err := f.service.Execute(context.Background(), in.AdjustPassengersInput{OperationID: "op-1", Delta: +1})
	require.Error(t, err)
	assert.Equal(t, domain.KindCapacity, domain.KindOf(err))
	assert.Equal(t, 45, f.ops.get("op-1").TotalPassengers)

	// Пустой — высадка отклоняется
	f = newAdjustFixture(t, 0, 45)
	_, err = f.service.Execute(context.Background(), in.AdjustPassengersInput{OperationID: "op-1", Delta: -1})
	require.Error(t, err)
	assert.Equal(t, domain.KindCapacity, domain.KindOf(err))
	assert.Equal(t, 0, f.ops.get("op-1").TotalPassengers)
}

func TestAdjustPassengersWrongState(t *testing.T) {
	f := newAdjustFixture(t, 5, 45)
	op := f.ops.get("op-1")
	op.Status = domain.StatusCompleted
	f.ops.put(op, 45)

	_, err := f.service.Execute(context.Background(), in.AdjustPassengersInput{OperationID: "op-1", Delta: +1})
	require.Error(t, err)
	assert.Equal(t, domain.KindWrongState, domain.KindOf(err))
}

func TestAdjustPassengersNotFound(t *testing.T) {
	f := newAdjustFixture(t, 5, 45)

	_, err := f.service.Execute(context.Background(), in.AdjustPassengersInput{OperationID: "op-absent", Delta: +1})
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestAdjustPassengersConcurrent(t *testing.T) {
	f := newAdjustFixture(t, 5, 10)

	// Конкурентные посадки и высадки: счетчик не выходит из [0, мест]
	// и не теряет инкременты
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		delta := +1
		if i%2 == 1 {
			delta = -1
		}
		wg.Add(1)
		go func(delta int) {
			defer wg.Done()
			_, _ = f.service.Execute(context.Background(), in.AdjustPassengersInput{OperationID: "op-1", Delta: delta})
		}(delta)
	}
	wg.Wait()

	final := f.ops.get("op-1").TotalPassengers
	assert.GreaterOrEqual(t, final, 0)
	assert.LessOrEqual(t, final, 10)
}
