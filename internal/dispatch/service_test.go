package dispatch

import (
	"context"
	"testing"
	"time"

	"snapkart-be/internal/apperr"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (Service, *MockRepository) {
	conn, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	repo := new(MockRepository)
	return NewService(conn, repo), repo
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultsToFlatCommission", func(t *testing.T) {
		svc, repo := newService(t)
		a := &Agent{Name: "Aziz", Phone: "+998900000000", MaxActiveOrders: 2}
		repo.On("Create", ctx, mock.Anything, a).Return(nil)

		require.NoError(t, svc.Register(ctx, a))
		assert.Equal(t, CommissionFlat, a.CommissionType)
		assert.True(t, a.IsActive)
	})

	t.Run("Invalid", func(t *testing.T) {
		svc, _ := newService(t)

		assert.ErrorIs(t, svc.Register(ctx, &Agent{Phone: "1"}), ErrMissingAgentName)
		assert.ErrorIs(t, svc.Register(ctx, &Agent{Name: "a", Phone: "1", MaxActiveOrders: -1}), ErrInvalidCapacity)
		assert.ErrorIs(t, svc.Register(ctx, &Agent{Name: "a", Phone: "1", MaxActiveOrders: 1, CommissionType: "TIPS"}), ErrInvalidCommission)
	})

	t.Run("ZeroCapacityRejected", func(t *testing.T) {
		svc, repo := newService(t)

		err := svc.Register(ctx, &Agent{Name: "Aziz", Phone: "+998900000000"})

		assert.ErrorIs(t, err, ErrInvalidCapacity)
		assert.ErrorIs(t, err, apperr.ErrValidation)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_UpdateLocation(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	repo.On("UpdateLocation", ctx, mock.Anything, int64(5), 41.3, 69.2).Return(nil)
	assert.NoError(t, svc.UpdateLocation(ctx, 5, 41.3, 69.2))

	err := svc.UpdateLocation(ctx, 5, 100, 69.2)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	repo.AssertNumberOfCalls(t, "UpdateLocation", 1)
}

func TestService_GetLocation(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	lat, lng := 41.3, 69.2
	at := time.Now()
	repo.On("Get", ctx, mock.Anything, int64(1)).Return(&Agent{ID: 1, Lat: &lat, Lng: &lng, LocationUpdatedAt: &at}, nil)
	repo.On("Get", ctx, mock.Anything, int64(2)).Return(&Agent{ID: 2}, nil)
	repo.On("Get", ctx, mock.Anything, int64(3)).Return(nil, ErrAgentNotFound)

	loc, err := svc.GetLocation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 41.3, loc.Lat)

	_, err = svc.GetLocation(ctx, 2)
	assert.ErrorIs(t, err, ErrLocationUnknown)

	_, err = svc.GetLocation(ctx, 3)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_Load(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService(t)

	repo.On("Get", ctx, mock.Anything, int64(1)).Return(&Agent{ID: 1, MaxActiveOrders: 3}, nil)
	repo.On("ActiveLoad", ctx, mock.Anything, int64(1)).Return(2, nil)

	load, err := svc.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, AgentLoad{AgentID: 1, ActiveOrders: 2, MaxActiveOrders: 3}, *load)
}

func TestAgent_Commission(t *testing.T) {
	pct := &Agent{CommissionType: CommissionPercentage, CommissionValue: decimal.NewFromInt(10)}
	assert.True(t, decimal.RequireFromString("25.05").Equal(pct.Commission(decimal.RequireFromString("250.50"))))

	flat := &Agent{CommissionType: CommissionFlat, CommissionValue: decimal.NewFromInt(40)}
	assert.True(t, decimal.NewFromInt(40).Equal(flat.Commission(decimal.NewFromInt(999))))
}
