package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/config"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/shared/logger"
	portsin "github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/in"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/cache"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/detector"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

type fakeOperationRepo struct {
	mu        sync.Mutex
	ops       map[string]*domain.Operation
	abandoned []string // operationID, отдаются из FindAbandoned
}

func newFakeOperationRepo() *fakeOperationRepo {
	return &fakeOperationRepo{ops: make(map[string]*domain.Operation)}
}

func (r *fakeOperationRepo) put(op *domain.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *op
	r.ops[op.OperationID] = &cp
}

func (r *fakeOperationRepo) get(operationID string) *domain.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if op, ok := r.ops[operationID]; ok {
		cp := *op
		return &cp
	}
	return nil
}

func (r *fakeOperationRepo) Create(_ context.Context, op *domain.Operation) error {
	r.put(op)
	return nil
}

func (r *fakeOperationRepo) FindByID(_ context.Context, operationID string) (*domain.Operation, error) {
	return r.get(operationID), nil
}

func (r *fakeOperationRepo) Update(_ context.Context, op *domain.Operation) error {
	r.put(op)
	return nil
}

func (r *fakeOperationRepo) FindByOrganizationAndStatus(context.Context, string, domain.OperationStatus) ([]*domain.Operation, error) {
	return nil, nil
}

func (r *fakeOperationRepo) FindByDriver(context.Context, string, int) ([]*domain.Operation, error) {
	return nil, nil
}

func (r *fakeOperationRepo) FindInProgressByBusNumber(context.Context, string, string) (*domain.Operation, error) {
	return nil, nil
}

func (r *fakeOperationRepo) FindAbandoned(context.Context, time.Time, time.Time) ([]*domain.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Operation
	for _, id := range r.abandoned {
		if op, ok := r.ops[id]; ok {
			cp := *op
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *fakeOperationRepo) AdjustPassengerCount(context.Context, string, int) (int, error) {
	return 0, nil
}

// fakeUpdateStatus применяет переход через доменную таблицу и пишет
// результат обратно в репозиторий
type fakeUpdateStatus struct {
	repo  *fakeOperationRepo
	calls []portsin.UpdateStatusInput
}

func (u *fakeUpdateStatus) Execute(_ context.Context, input portsin.UpdateStatusInput) (*domain.Operation, error) {
	u.calls = append(u.calls, input)
	op := u.repo.get(input.OperationID)
	if op == nil {
		return nil, domain.ErrNotFound("operation %s not found", input.OperationID)
	}
	if err := op.Transition(input.NewStatus, time.Now().UTC()); err != nil {
		return nil, err
	}
	u.repo.put(op)
	return op, nil
}

type sweeperFixture struct {
	sweeper      *Sweeper
	locations    *cache.LocationCache
	engine       *detector.Engine
	ops          *fakeOperationRepo
	updateStatus *fakeUpdateStatus
	now          time.Time
}

func newSweeperFixture(t *testing.T) *sweeperFixture {
	t.Helper()

	f := &sweeperFixture{
		locations: cache.NewLocationCache(),
		ops:       newFakeOperationRepo(),
		now:       time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC),
	}
	log := logger.NewLogger("test")
	cfg := config.DefaultTrackingConfig()
	f.engine = detector.NewEngine(f.locations, nil, f.ops, nil, nil, cfg, log)
	f.updateStatus = &fakeUpdateStatus{repo: f.ops}
	f.sweeper = NewSweeper(f.locations, f.engine, f.ops, f.updateStatus, cfg, log)
	f.sweeper.now = func() time.Time { return f.now }
	return f
}

func TestSweepCachesEvictsStaleLocations(t *testing.T) {
	f := newSweeperFixture(t)

	f.locations.Put(domain.DriverLocationSample{OperationID: "op-stale", OrganizationID: "org-1"}, f.now.Add(-20*time.Minute))
	f.locations.Put(domain.DriverLocationSample{OperationID: "op-fresh", OrganizationID: "org-1"}, f.now.Add(-time.Minute))

	f.sweeper.SweepCaches()

	_, ok := f.locations.Get("op-stale")
	assert.False(t, ok)
	_, ok = f.locations.Get("op-fresh")
	assert.True(t, ok)
}

func TestCloseAbandonedCompletesInProgress(t *testing.T) {
	f := newSweeperFixture(t)

	f.ops.put(&domain.Operation{
		OperationID:    "op-1",
		OrganizationID: "org-1",
		Status:         domain.StatusInProgress,
		ScheduledEnd:   f.now.Add(-3 * time.Hour),
		UpdatedAt:      f.now.Add(-150 * time.Minute),
	})
	f.ops.abandoned = []string{"op-1"}
	f.locations.Put(domain.DriverLocationSample{OperationID: "op-1", OrganizationID: "org-1"}, f.now.Add(-150*time.Minute))

	f.sweeper.CloseAbandoned(context.Background())

	op := f.ops.get("op-1")
	assert.Equal(t, domain.StatusCompleted, op.Status)

	require.Len(t, f.updateStatus.calls, 1)
	assert.Equal(t, domain.StatusCompleted, f.updateStatus.calls[0].NewStatus)
	assert.Contains(t, f.updateStatus.calls[0].Reason, "abandoned")

	_, ok := f.locations.Get("op-1")
	assert.False(t, ok)
}

func TestCloseAbandonedCancelsScheduled(t *testing.T) {
	f := newSweeperFixture(t)

	// Брошенный так и не начатый рейс отменяется, а не завершается
	f.ops.put(&domain.Operation{
		OperationID:    "op-2",
		OrganizationID: "org-1",
		Status:         domain.StatusScheduled,
		ScheduledEnd:   f.now.Add(-3 * time.Hour),
		UpdatedAt:      f.now.Add(-4 * time.Hour),
	})
	f.ops.abandoned = []string{"op-2"}

	f.sweeper.CloseAbandoned(context.Background())

	assert.Equal(t, domain.StatusCancelled, f.ops.get("op-2").Status)
	require.Len(t, f.updateStatus.calls, 1)
	assert.Equal(t, domain.StatusCancelled, f.updateStatus.calls[0].NewStatus)
}

func TestCloseAbandonedSkipsTerminal(t *testing.T) {
	f := newSweeperFixture(t)

	// Между выборкой и закрытием рейс успели завершить — пропускаем
	f.ops.put(&domain.Operation{
		OperationID:    "op-3",
		OrganizationID: "org-1",
		Status:         domain.StatusCompleted,
		ScheduledEnd:   f.now.Add(-3 * time.Hour),
		UpdatedAt:      f.now.Add(-3 * time.Hour),
	})
	f.ops.abandoned = []string{"op-3"}

	f.sweeper.CloseAbandoned(context.Background())

	assert.Empty(t, f.updateStatus.calls)
	assert.Equal(t, domain.StatusCompleted, f.ops.get("op-3").Status)
}

func TestCloseAbandonedSurvivesLostRace(t *testing.T) {
	f := newSweeperFixture(t)

	// UpdateStatus вернет WRONG_STATE (рейс уже не IN_PROGRESS на момент
	// перехода) — свипер логирует и идет дальше
	f.ops.put(&domain.Operation{
		OperationID:    "op-4",
		OrganizationID: "org-1",
		Status:         domain.StatusInProgress,
		ScheduledEnd:   f.now.Add(-3 * time.Hour),
		UpdatedAt:      f.now.Add(-3 * time.Hour),
	})
	f.ops.put(&domain.Operation{
		OperationID:    "op-5",
		OrganizationID: "org-1",
		Status:         domain.StatusInProgress,
		ScheduledEnd:   f.now.Add(-3 * time.Hour),
		UpdatedAt:      f.now.Add(-3 * time.Hour),
	})
	f.ops.abandoned = []string{"op-4", "op-5"}

	// op-4 успели завершить между выборкой и закрытием
	stale := f.ops.get("op-4")
	stale.Status = domain.StatusCompleted
	f.ops.put(stale)

	f.sweeper.CloseAbandoned(context.Background())

	// op-4 пропущен, op-5 закрыт
	require.Len(t, f.updateStatus.calls, 1)
	assert.Equal(t, "op-5", f.updateStatus.calls[0].OperationID)
	assert.Equal(t, domain.StatusCompleted, f.ops.get("op-5").Status)
}
