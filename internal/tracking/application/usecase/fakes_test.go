package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/application/ports/out"
	"github.com/BBB-bus-buddy-buddy/App-Backend-sub000/internal/tracking/domain"
)

// Фейки для тестов use-case'ов: in-memory репозитории с той же
// семантикой, что у pg-реализаций (Find* возвращают (nil, nil) при
// отсутствии строки, AdjustPassengerCount атомарен и проверяет
// статус и вместимость).

type fakeOperationRepo struct {
	mu          sync.Mutex
	ops         map[string]*domain.Operation
	seats       map[string]int // operationID → totalSeats автобуса
	driverLimit int            // последний limit, переданный в FindByDriver
}

func newFakeOperationRepo() *fakeOperationRepo {
	return &fakeOperationRepo{
		ops:   make(map[string]*domain.Operation),
		seats: make(map[string]int),
	}
}

func (r *fakeOperationRepo) put(op *domain.Operation, totalSeats int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *op
	r.ops[op.OperationID] = &cp
	r.seats[op.OperationID] = totalSeats
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
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *op
	r.ops[op.OperationID] = &cp
	return nil
}

func (r *fakeOperationRepo) FindByID(_ context.Context, operationID string) (*domain.Operation, error) {
	return r.get(operationID), nil
}

func (r *fakeOperationRepo) Update(_ context.Context, op *domain.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ops[op.OperationID]; !ok {
		return domain.ErrNotFound("operation %s not found", op.OperationID)
	}
	cp := *op
	r.ops[op.OperationID] = &cp
	return nil
}

func (r *fakeOperationRepo) FindByOrganizationAndStatus(_ context.Context, organizationID string, status domain.OperationStatus) ([]*domain.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Operation
	for _, op := range r.ops {
		if op.OrganizationID == organizationID && op.Status == status {
			cp := *op
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *fakeOperationRepo) FindByDriver(_ context.Context, driverID string, limit int) ([]*domain.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.driverLimit = limit
	var result []*domain.Operation
	for _, op := range r.ops {
		if op.DriverID == driverID {
			cp := *op
			result = append(result, &cp)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (r *fakeOperationRepo) FindInProgressByBusNumber(context.Context, string, string) (*domain.Operation, error) {
	return nil, nil
}

func (r *fakeOperationRepo) FindAbandoned(_ context.Context, cutoff, staleBefore time.Time) ([]*domain.Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*domain.Operation
	for _, op := range r.ops {
		if op.Status.IsTerminal() {
			continue
		}
		if op.ScheduledEnd.Before(cutoff) && op.UpdatedAt.Before(staleBefore) {
			cp := *op
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *fakeOperationRepo) AdjustPassengerCount(_ context.Context, operationID string, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[operationID]
	if !ok {
		return 0, domain.ErrNotFound("operation %s not found", operationID)
	}
	if op.Status != domain.StatusInProgress {
		return 0, domain.ErrWrongState("operation %s is %s", operationID, op.Status)
	}
	next := op.TotalPassengers + delta
	if next < 0 {
		return 0, domain.ErrCapacity("passenger count cannot go below zero")
	}
	if seats, ok := r.seats[operationID]; ok && next > seats {
		return 0, domain.ErrCapacity("bus is full")
	}
	op.TotalPassengers = next
	return next, nil
}

type fakeBusRepo struct {
	mu    sync.Mutex
	buses map[string]*domain.Bus
}

func newFakeBusRepo() *fakeBusRepo {
	return &fakeBusRepo{buses: make(map[string]*domain.Bus)}
}

func (r *fakeBusRepo) put(bus *domain.Bus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *bus
	r.buses[bus.ID] = &cp
}

func (r *fakeBusRepo) get(busID string) *domain.Bus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bus, ok := r.buses[busID]; ok {
		cp := *bus
		return &cp
	}
	return nil
}

func (r *fakeBusRepo) FindByID(_ context.Context, busID string) (*domain.Bus, error) {
	return r.get(busID), nil
}

func (r *fakeBusRepo) FindByNumber(_ context.Context, organizationID, busNumber string) (*domain.Bus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, bus := range r.buses {
		if bus.OrganizationID == organizationID && bus.BusNumber == busNumber {
			cp := *bus
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeBusRepo) Update(_ context.Context, bus *domain.Bus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.buses[bus.ID]; !ok {
		return domain.ErrNotFound("bus %s not found", bus.ID)
	}
	cp := *bus
	r.buses[bus.ID] = &cp
	return nil
}

func (r *fakeBusRepo) UpdateLocation(_ context.Context, busID string, lat, lon float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bus, ok := r.buses[busID]
	if !ok {
		return domain.ErrNotFound("bus %s not found", busID)
	}
	bus.LastLatitude = &lat
	bus.LastLongitude = &lon
	bus.LastLocationUpdate = &at
	return nil
}

func (r *fakeBusRepo) SetOccupiedSeats(_ context.Context, busID string, occupied int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bus, ok := r.buses[busID]
	if !ok {
		return domain.ErrNotFound("bus %s not found", busID)
	}
	if occupied < 0 {
		occupied = 0
	}
	if occupied > bus.TotalSeats {
		occupied = bus.TotalSeats
	}
	bus.OccupiedSeats = occupied
	return nil
}

type fakeRouteRepo struct {
	routes map[string]*domain.Route
}

func newFakeRouteRepo() *fakeRouteRepo {
	return &fakeRouteRepo{routes: make(map[string]*domain.Route)}
}

func (r *fakeRouteRepo) FindByID(_ context.Context, routeID string) (*domain.Route, error) {
	if route, ok := r.routes[routeID]; ok {
		return route, nil
	}
	return nil, nil
}

type publishedEvent struct {
	eventType string
	data      out.OperationEventData
}

type fakePublisher struct {
	mu        sync.Mutex
	events    []publishedEvent
	locations []domain.BusStatus
	err       error
}

func (p *fakePublisher) PublishOperationEvent(_ context.Context, eventType string, data out.OperationEventData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{eventType: eventType, data: data})
	return nil
}

func (p *fakePublisher) PublishLocation(_ context.Context, status domain.BusStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.locations = append(p.locations, status)
	return nil
}

func (p *fakePublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.eventType
	}
	return types
}

type fakeBroadcaster struct {
	mu        sync.Mutex
	broadcast []domain.BusStatus
	notified  []string // userID
}

func (b *fakeBroadcaster) BroadcastToOrganization(_ string, status domain.BusStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcast = append(b.broadcast, status)
}

func (b *fakeBroadcaster) NotifyPassenger(userID, _ string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notified = append(b.notified, userID)
}

func (b *fakeBroadcaster) SendToDriver(string, any) {}

func (b *fakeBroadcaster) broadcastCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.broadcast)
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*domain.TrackingEvent
	err    error
}

func (r *fakeEventRepo) Save(_ context.Context, event *domain.TrackingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}
