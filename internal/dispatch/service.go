package dispatch

import (
	"context"
	"database/sql"

	"snapkart-be/internal/geo"
	"snapkart-be/internal/logger"

	"go.uber.org/zap"
)

// Service is the agent registry: the read/write contract the allocator's
// inputs come from.
type Service interface {
	Register(ctx context.Context, a *Agent) error
	UpdateLocation(ctx context.Context, agentID int64, lat, lng float64) error
	SetAvailability(ctx context.Context, agentID int64, available bool) error
	GetLocation(ctx context.Context, agentID int64) (*Location, error)
	Load(ctx context.Context, agentID int64) (*AgentLoad, error)
}

type service struct {
	db   *sql.DB
	repo Repository
}

func NewService(conn *sql.DB, repo Repository) Service {
	return &service{db: conn, repo: repo}
}

func (s *service) Register(ctx context.Context, a *Agent) error {
	if a.Name == "" || a.Phone == "" {
		return ErrMissingAgentName
	}
	if a.MaxActiveOrders <= 0 {
		return ErrInvalidCapacity
	}
	if a.CommissionType == "" {
		a.CommissionType = CommissionFlat
	}
	if (a.CommissionType != CommissionFlat && a.CommissionType != CommissionPercentage) ||
		a.CommissionValue.IsNegative() {
		return ErrInvalidCommission
	}
	a.IsActive = true

	if err := s.repo.Create(ctx, s.db, a); err != nil {
		logger.FromCtx(ctx).Error("failed to register agent",
			zap.String("layer", "service"),
			zap.String("method", "Register"),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *service) UpdateLocation(ctx context.Context, agentID int64, lat, lng float64) error {
	if err := geo.ValidatePoint(lat, lng); err != nil {
		return err
	}
	return s.repo.UpdateLocation(ctx, s.db, agentID, lat, lng)
}

func (s *service) SetAvailability(ctx context.Context, agentID int64, available bool) error {
	if err := s.repo.SetAvailability(ctx, s.db, agentID, available); err != nil {
		return err
	}
	logger.FromCtx(ctx).Info("agent availability changed",
		zap.String("layer", "service"),
		zap.Int64("agent_id", agentID),
		zap.Bool("available", available),
	)
	return nil
}

func (s *service) GetLocation(ctx context.Context, agentID int64) (*Location, error) {
	a, err := s.repo.Get(ctx, s.db, agentID)
	if err != nil {
		return nil, err
	}
	if a.Lat == nil || a.Lng == nil {
		return nil, ErrLocationUnknown
	}
	return &Location{AgentID: a.ID, Lat: *a.Lat, Lng: *a.Lng, UpdatedAt: a.LocationUpdatedAt}, nil
}

func (s *service) Load(ctx context.Context, agentID int64) (*AgentLoad, error) {
	a, err := s.repo.Get(ctx, s.db, agentID)
	if err != nil {
		return nil, err
	}
	n, err := s.repo.ActiveLoad(ctx, s.db, agentID)
	if err != nil {
		return nil, err
	}
	return &AgentLoad{AgentID: a.ID, ActiveOrders: n, MaxActiveOrders: a.MaxActiveOrders}, nil
}
