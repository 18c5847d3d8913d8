// Package dispatch binds delivery agents to orders without exceeding any
// agent's capacity, and owns the agent registry the allocator reads.
package dispatch

import (
	"context"

	"snapkart-be/internal/db"
	"snapkart-be/internal/logger"
	"snapkart-be/internal/metrics"

	"go.uber.org/zap"
)

type Allocator interface {
	// Allocate picks the agent for one dispatch. q must be the serializable
	// transaction that also binds the agent to the order.
	Allocate(ctx context.Context, q db.DBTX) (*Agent, error)
}

type allocator struct {
	repo Repository
}

func NewAllocator(repo Repository) Allocator {
	return &allocator{repo: repo}
}

// Allocate scans candidates oldest-updated first and takes the first one
// whose live load is below its capacity. The winner's fairness clock is
// refreshed so the next dispatch starts with someone else.
func (a *allocator) Allocate(ctx context.Context, q db.DBTX) (*Agent, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "dispatch"),
		zap.String("method", "Allocate"),
	)

	candidates, err := a.repo.Candidates(ctx, q)
	if err != nil {
		return nil, err
	}

	for i := range candidates {
		agent := &candidates[i]
		load, err := a.repo.ActiveLoad(ctx, q, agent.ID)
		if err != nil {
			return nil, err
		}
		if load >= agent.MaxActiveOrders {
			log.Debug("agent at capacity",
				zap.Int64("agent_id", agent.ID),
				zap.Int("load", load),
				zap.Int("max_active_orders", agent.MaxActiveOrders),
			)
			continue
		}

		if err := a.repo.Touch(ctx, q, agent.ID); err != nil {
			return nil, err
		}
		metrics.Inc(metrics.DispatchAssigned)
		log.Info("agent allocated", zap.Int64("agent_id", agent.ID), zap.Int("load", load))
		return agent, nil
	}

	metrics.Inc(metrics.DispatchNoCapacity)
	log.Warn("no agent with free capacity", zap.Int("candidates", len(candidates)))
	return nil, ErrNoCapacity
}
