package dispatch

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"snapkart-be/internal/apperr"
	"snapkart-be/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Candidates(ctx context.Context, q db.DBTX) ([]Agent, error) {
	args := m.Called(ctx, q)
	agents, _ := args.Get(0).([]Agent)
	return agents, args.Error(1)
}

func (m *MockRepository) ActiveLoad(ctx context.Context, q db.DBTX, agentID int64) (int, error) {
	args := m.Called(ctx, q, agentID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) Touch(ctx context.Context, q db.DBTX, agentID int64) error {
	return m.Called(ctx, q, agentID).Error(0)
}

func (m *MockRepository) Get(ctx context.Context, q db.DBTX, id int64) (*Agent, error) {
	args := m.Called(ctx, q, id)
	a, _ := args.Get(0).(*Agent)
	return a, args.Error(1)
}

func (m *MockRepository) UpdateLocation(ctx context.Context, q db.DBTX, id int64, lat, lng float64) error {
	return m.Called(ctx, q, id, lat, lng).Error(0)
}

func (m *MockRepository) SetAvailability(ctx context.Context, q db.DBTX, id int64, available bool) error {
	return m.Called(ctx, q, id, available).Error(0)
}

func (m *MockRepository) Create(ctx context.Context, q db.DBTX, a *Agent) error {
	return m.Called(ctx, q, a).Error(0)
}

func TestAllocate_FirstWithCapacityWins(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)

	repo.On("Candidates", ctx, nil).Return([]Agent{
		{ID: 1, MaxActiveOrders: 1},
		{ID: 2, MaxActiveOrders: 3},
		{ID: 3, MaxActiveOrders: 5},
	}, nil)
	repo.On("ActiveLoad", ctx, nil, int64(1)).Return(1, nil)
	repo.On("ActiveLoad", ctx, nil, int64(2)).Return(2, nil)
	repo.On("Touch", ctx, nil, int64(2)).Return(nil)

	agent, err := NewAllocator(repo).Allocate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), agent.ID)

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "ActiveLoad", ctx, nil, int64(3))
	repo.AssertNotCalled(t, "Touch", ctx, nil, int64(1))
}

func TestAllocate_NoCapacity(t *testing.T) {
	ctx := context.Background()

	t.Run("NoAgents", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Candidates", ctx, nil).Return(nil, nil)

		_, err := NewAllocator(repo).Allocate(ctx, nil)
		assert.ErrorIs(t, err, ErrNoCapacity)
		assert.Equal(t, apperr.KindNoCapacity, apperr.KindOf(err))
	})

	t.Run("AllFull", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Candidates", ctx, nil).Return([]Agent{
			{ID: 1, MaxActiveOrders: 2},
			{ID: 2, MaxActiveOrders: 0},
		}, nil)
		repo.On("ActiveLoad", ctx, nil, int64(1)).Return(2, nil)
		repo.On("ActiveLoad", ctx, nil, int64(2)).Return(0, nil)

		_, err := NewAllocator(repo).Allocate(ctx, nil)
		assert.ErrorIs(t, err, apperr.ErrNoCapacity)
		repo.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("LoadQueryFails", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Candidates", ctx, nil).Return([]Agent{{ID: 1, MaxActiveOrders: 2}}, nil)
		repo.On("ActiveLoad", ctx, nil, int64(1)).Return(0, errors.New("db down"))

		_, err := NewAllocator(repo).Allocate(ctx, nil)
		assert.EqualError(t, err, "db down")
	})
}

// fleet is an in-memory Repository that behaves like the locked scan
// running one transaction at a time.
type fleet struct {
	MockRepository
	agents []Agent
	load   map[int64]int
	clock  time.Time
}

func (f *fleet) Candidates(ctx context.Context, q db.DBTX) ([]Agent, error) {
	out := make([]Agent, 0, len(f.agents))
	for _, a := range f.agents {
		if a.IsActive && a.IsAvailable {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fleet) ActiveLoad(ctx context.Context, q db.DBTX, agentID int64) (int, error) {
	return f.load[agentID], nil
}

func (f *fleet) Touch(ctx context.Context, q db.DBTX, agentID int64) error {
	f.clock = f.clock.Add(time.Second)
	for i := range f.agents {
		if f.agents[i].ID == agentID {
			f.agents[i].UpdatedAt = f.clock
		}
	}
	return nil
}

func TestAllocate_CapacityNeverExceeded(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &fleet{
		agents: []Agent{
			{ID: 1, IsActive: true, IsAvailable: true, MaxActiveOrders: 2, UpdatedAt: start},
			{ID: 2, IsActive: true, IsAvailable: true, MaxActiveOrders: 1, UpdatedAt: start},
			{ID: 3, IsActive: true, IsAvailable: false, MaxActiveOrders: 9, UpdatedAt: start},
			{ID: 4, IsActive: false, IsAvailable: true, MaxActiveOrders: 9, UpdatedAt: start},
		},
		load:  map[int64]int{},
		clock: start,
	}
	alloc := NewAllocator(f)

	var order []int64
	for i := 0; i < 3; i++ {
		a, err := alloc.Allocate(ctx, nil)
		require.NoError(t, err)
		f.load[a.ID]++
		order = append(order, a.ID)
	}

	// Oldest-updated first: 1 and 2 tie on the clock and break on id,
	// then 1 again once 2 is full.
	assert.Equal(t, []int64{1, 2, 1}, order)

	_, err := alloc.Allocate(ctx, nil)
	assert.ErrorIs(t, err, ErrNoCapacity)

	for _, a := range f.agents {
		assert.LessOrEqual(t, f.load[a.ID], a.MaxActiveOrders, "agent %d over capacity", a.ID)
	}
}
