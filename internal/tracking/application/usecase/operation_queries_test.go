package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

func newQueryFixture(t *testing.T) (*OperationQueryService, *fakeOperationRepo) {
	t.Helper()
	ops := newFakeOperationRepo()

	ops.put(&domain.Operation{OperationID: "op-1", OrganizationID: "org-1", DriverID: "driver-1", Status: domain.StatusInProgress}, 45)
	ops.put(&domain.Operation{OperationID: "op-2", OrganizationID: "org-1", DriverID: "driver-1", Status: domain.StatusScheduled}, 45)
	ops.put(&domain.Operation{OperationID: "op-3", OrganizationID: "org-2", DriverID: "driver-2", Status: domain.StatusInProgress}, 45)

	return NewOperationQueryService(ops, logger.NewLogger("test")), ops
}

func TestActiveOperationsFiltersByOrganizationAndStatus(t *testing.T) {
	svc, _ := newQueryFixture(t)

	active, err := svc.ActiveOperations(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "op-1", active[0].OperationID)

	// Для чужой организации свои рейсы
	active, err = svc.ActiveOperations(context.Background(), "org-2")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "op-3", active[0].OperationID)

	active, err = svc.ActiveOperations(context.Background(), "org-absent")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDriverOperations(t *testing.T) {
	svc, ops := newQueryFixture(t)

	result, err := svc.DriverOperations(context.Background(), "driver-1", 10)
	require.NoError(t, err)
	assert.Len(t, result, 2)
	assert.Equal(t, 10, ops.driverLimit)

	result, err = svc.DriverOperations(context.Background(), "driver-2", 10)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "op-3", result[0].OperationID)
}

func TestDriverOperationsClampsLimit(t *testing.T) {
	svc, ops := newQueryFixture(t)

	_, err := svc.DriverOperations(context.Background(), "driver-1", 0)
	require.NoError(t, err)
	assert.Equal(t, maxDriverOperations, ops.driverLimit)

	_, err = svc.DriverOperations(context.Background(), "driver-1", 500)
	require.NoError(t, err)
	assert.Equal(t, maxDriverOperations, ops.driverLimit)

	_, err = svc.DriverOperations(context.Background(), "driver-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ops.driverLimit)
}
