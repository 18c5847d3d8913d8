package order

import (
	"context"

	"snapkart-be/internal/catalog"
	"snapkart-be/internal/coupon"
	"snapkart-be/internal/db"
	"snapkart-be/internal/dispatch"
	"snapkart-be/internal/payment"
	"snapkart-be/internal/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, q db.DBTX, o *Order) error {
	return m.Called(ctx, q, o).Error(0)
}

func (m *MockRepository) Get(ctx context.Context, q db.DBTX, id int64, forUpdate bool) (*Order, error) {
	args := m.Called(ctx, q, id, forUpdate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) Items(ctx context.Context, q db.DBTX, orderID int64) ([]catalog.LineItem, error) {
	args := m.Called(ctx, q, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.LineItem), args.Error(1)
}

func (m *MockRepository) Apply(ctx context.Context, q db.DBTX, ch Change) error {
	return m.Called(ctx, q, ch).Error(0)
}

func (m *MockRepository) RecordRefund(ctx context.Context, q db.DBTX, orderID int64, amount decimal.Decimal) error {
	return m.Called(ctx, q, orderID, amount).Error(0)
}

func (m *MockRepository) AppendHistory(ctx context.Context, q db.DBTX, e *HistoryEntry) error {
	return m.Called(ctx, q, e).Error(0)
}

func (m *MockRepository) History(ctx context.Context, q db.DBTX, orderID int64) ([]HistoryEntry, error) {
	args := m.Called(ctx, q, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]HistoryEntry), args.Error(1)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetRestaurant(ctx context.Context, q db.DBTX, id int64) (*catalog.Restaurant, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Restaurant), args.Error(1)
}

func (m *MockCatalog) Snapshot(ctx context.Context, q db.DBTX, restaurantID int64, items []catalog.ItemRequest) ([]catalog.LineItem, error) {
	args := m.Called(ctx, q, restaurantID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.LineItem), args.Error(1)
}

type MockPricer struct {
	mock.Mock
}

func (m *MockPricer) QuoteTx(ctx context.Context, q db.DBTX, restaurantID int64, cartTotal decimal.Decimal, distanceKm float64) (*pricing.Quote, error) {
	args := m.Called(ctx, q, restaurantID, cartTotal, distanceKm)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.Quote), args.Error(1)
}

type MockCoupons struct {
	mock.Mock
}

func (m *MockCoupons) Preview(ctx context.Context, code string, userID int64, cartTotal decimal.Decimal) (*coupon.Application, error) {
	args := m.Called(ctx, code, userID, cartTotal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Application), args.Error(1)
}

func (m *MockCoupons) ApplyTx(ctx context.Context, q db.DBTX, code string, userID int64, cartTotal decimal.Decimal) (*coupon.Application, error) {
	args := m.Called(ctx, q, code, userID, cartTotal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coupon.Application), args.Error(1)
}

func (m *MockCoupons) AttachOrderTx(ctx context.Context, q db.DBTX, couponID, userID, orderID int64) error {
	return m.Called(ctx, q, couponID, userID, orderID).Error(0)
}

func (m *MockCoupons) ReleaseTx(ctx context.Context, q db.DBTX, couponID, userID int64) error {
	return m.Called(ctx, q, couponID, userID).Error(0)
}

type MockAllocator struct {
	mock.Mock
}

func (m *MockAllocator) Allocate(ctx context.Context, q db.DBTX) (*dispatch.Agent, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispatch.Agent), args.Error(1)
}

type MockAgents struct {
	mock.Mock
}

func (m *MockAgents) Get(ctx context.Context, q db.DBTX, id int64) (*dispatch.Agent, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispatch.Agent), args.Error(1)
}

type MockPayments struct {
	mock.Mock
}

func (m *MockPayments) CreateSession(ctx context.Context, ref payment.ReferenceType, refID int64, amount decimal.Decimal) (*payment.Payment, error) {
	args := m.Called(ctx, ref, refID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPayments) RefundOrderTx(ctx context.Context, q db.DBTX, orderID int64, amount decimal.Decimal) (*payment.Payment, error) {
	args := m.Called(ctx, q, orderID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

// fixedDistance stands in for the road-distance provider.
type fixedDistance float64

func (d fixedDistance) DistanceKm(_, _, _, _ float64) (float64, error) {
	return float64(d), nil
}
