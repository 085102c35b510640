package handlers

import (
	"context"
	"net/http/httptest"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"github.com/arnabghosh/compute-matcher/internal/scheduler"
	"github.com/gin-gonic/gin"
)

// MockDemandRepository implements storage.DemandRepository for testing
type MockDemandRepository struct {
	StoreFunc        func(d *domain.Demand) error
	GetByIDFunc      func(id string) (*domain.Demand, error)
	ListByStatusFunc func(status domain.DemandStatus) ([]*domain.Demand, error)
	TransitionFunc   func(id string, from, to domain.DemandStatus, resourceID string) error
	CountFunc        func() int64
}

func (m *MockDemandRepository) Store(_ context.Context, d *domain.Demand) error {
	if m.StoreFunc != nil {
		return m.StoreFunc(d)
	}
	return nil
}

func (m *MockDemandRepository) GetByID(_ context.Context, id string) (*domain.Demand, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(id)
	}
	return nil, domain.ErrDemandNotFound
}

func (m *MockDemandRepository) ListByStatus(_ context.Context, status domain.DemandStatus) ([]*domain.Demand, error) {
	if m.ListByStatusFunc != nil {
		return m.ListByStatusFunc(status)
	}
	return nil, nil
}

func (m *MockDemandRepository) Transition(_ context.Context, id string, from, to domain.DemandStatus, resourceID string) error {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(id, from, to, resourceID)
	}
	return nil
}

func (m *MockDemandRepository) Count(_ context.Context) int64 {
	if m.CountFunc != nil {
		return m.CountFunc()
	}
	return 0
}

// MockResourceRepository implements storage.ResourceRepository for testing
type MockResourceRepository struct {
	StoreFunc         func(r *domain.Resource) error
	GetByIDFunc       func(id string) (*domain.Resource, error)
	ListFunc          func() ([]*domain.Resource, error)
	ListAvailableFunc func() ([]*domain.Resource, error)
	ReserveFunc       func(id string) error
	ReleaseFunc       func(id string) error
	UpdateFunc        func(id string, change func(*domain.Resource) error) (*domain.Resource, error)
	OutcomeFunc       func(id string, delta float64, used time.Duration) error
	CountFunc         func() int64
}

func (m *MockResourceRepository) Store(_ context.Context, r *domain.Resource) error {
	if m.StoreFunc != nil {
		return m.StoreFunc(r)
	}
	return nil
}

func (m *MockResourceRepository) GetByID(_ context.Context, id string) (*domain.Resource, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(id)
	}
	return nil, domain.ErrResourceNotFound
}

func (m *MockResourceRepository) List(_ context.Context) ([]*domain.Resource, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return nil, nil
}

func (m *MockResourceRepository) ListAvailable(_ context.Context) ([]*domain.Resource, error) {
	if m.ListAvailableFunc != nil {
		return m.ListAvailableFunc()
	}
	return nil, nil
}

func (m *MockResourceRepository) Reserve(_ context.Context, id string) error {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(id)
	}
	return nil
}

func (m *MockResourceRepository) Release(_ context.Context, id string) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(id)
	}
	return nil
}

// Update defaults to GetByIDFunc, change, then StoreFunc
func (m *MockResourceRepository) Update(ctx context.Context, id string, change func(*domain.Resource) error) (*domain.Resource, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(id, change)
	}
	r, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := change(r); err != nil {
		return nil, err
	}
	if err := m.Store(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (m *MockResourceRepository) RecordOutcome(_ context.Context, id string, delta, _ float64, used time.Duration) error {
	if m.OutcomeFunc != nil {
		return m.OutcomeFunc(id, delta, used)
	}
	return nil
}

func (m *MockResourceRepository) Count(_ context.Context) int64 {
	if m.CountFunc != nil {
		return m.CountFunc()
	}
	return 0
}

// MockLifecycle implements DemandLifecycle for testing
type MockLifecycle struct {
	StartFunc    func(id string) error
	CancelFunc   func(id string) error
	CompleteFunc func(id string, success bool, actual time.Duration) error
}

func (m *MockLifecycle) Start(_ context.Context, id string) error {
	if m.StartFunc != nil {
		return m.StartFunc(id)
	}
	return nil
}

func (m *MockLifecycle) Cancel(_ context.Context, id string) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(id)
	}
	return nil
}

func (m *MockLifecycle) Complete(_ context.Context, id string, success bool, actual time.Duration) error {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(id, success, actual)
	}
	return nil
}

// MockReportStore implements ReportStore for testing
type MockReportStore struct {
	RecentFunc   func(limit int) ([]*domain.CycleReport, error)
	GetFunc      func(cycleID string) (*domain.CycleReport, error)
	MatchForFunc func(demandID string) (*domain.SettledMatch, error)
}

func (m *MockReportStore) Recent(_ context.Context, limit int) ([]*domain.CycleReport, error) {
	if m.RecentFunc != nil {
		return m.RecentFunc(limit)
	}
	return nil, nil
}

func (m *MockReportStore) Get(_ context.Context, cycleID string) (*domain.CycleReport, error) {
	if m.GetFunc != nil {
		return m.GetFunc(cycleID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockReportStore) MatchFor(_ context.Context, demandID string) (*domain.SettledMatch, error) {
	if m.MatchForFunc != nil {
		return m.MatchForFunc(demandID)
	}
	return nil, domain.ErrNotFound
}

// MockCycleRunner implements CycleRunner for testing
type MockCycleRunner struct {
	RunCycleFunc func() (*domain.CycleReport, error)
	StatsFunc    func() scheduler.Stats
}

func (m *MockCycleRunner) RunCycle(_ context.Context) (*domain.CycleReport, error) {
	if m.RunCycleFunc != nil {
		return m.RunCycleFunc()
	}
	return &domain.CycleReport{}, nil
}

func (m *MockCycleRunner) Stats() scheduler.Stats {
	if m.StatsFunc != nil {
		return m.StatsFunc()
	}
	return scheduler.Stats{}
}

func setupGinTest() (*gin.Engine, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	w := httptest.NewRecorder()
	return router, w
}
