package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"snapkart-be/internal/db"
)

type Repository interface {
	Candidates(ctx context.Context, q db.DBTX) ([]Agent, error)
	ActiveLoad(ctx context.Context, q db.DBTX, agentID int64) (int, error)
	Touch(ctx context.Context, q db.DBTX, agentID int64) error
	Get(ctx context.Context, q db.DBTX, id int64) (*Agent, error)
	UpdateLocation(ctx context.Context, q db.DBTX, id int64, lat, lng float64) error
	SetAvailability(ctx context.Context, q db.DBTX, id int64, available bool) error
	Create(ctx context.Context, q db.DBTX, a *Agent) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const agentColumns = `
	id, name, phone, is_active, is_available, max_active_orders, lat, lng,
	location_updated_at, commission_type, commission_value, created_at, updated_at`

func scanAgent(sc interface{ Scan(...any) error }) (*Agent, error) {
	var (
		a        Agent
		lat, lng sql.NullFloat64
		locAt    sql.NullTime
	)
	if err := sc.Scan(
		&a.ID, &a.Name, &a.Phone, &a.IsActive, &a.IsAvailable, &a.MaxActiveOrders, &lat, &lng,
		&locAt, &a.CommissionType, &a.CommissionValue, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		a.Lat, a.Lng = &lat.Float64, &lng.Float64
	}
	if locAt.Valid {
		a.LocationUpdatedAt = &locAt.Time
	}
	return &a, nil
}

// Candidates locks every active, available agent, oldest-updated first.
func (r *repository) Candidates(ctx context.Context, q db.DBTX) ([]Agent, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT`+agentColumns+`
		FROM delivery_agents
		WHERE is_active = TRUE AND is_available = TRUE
		ORDER BY updated_at ASC, id ASC
		FOR UPDATE
	`)
	if err != nil {
		return nil, fmt.Errorf("query dispatch candidates: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func (r *repository) ActiveLoad(ctx context.Context, q db.DBTX, agentID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE delivery_agent_id = $1 AND status = 'OUT_FOR_DELIVERY'
	`, agentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count agent load: %w", err)
	}
	return n, nil
}

func (r *repository) Touch(ctx context.Context, q db.DBTX, agentID int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE delivery_agents SET updated_at = now() WHERE id = $1
	`, agentID)
	if err != nil {
		return fmt.Errorf("touch agent: %w", err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, q db.DBTX, id int64) (*Agent, error) {
	a, err := scanAgent(q.QueryRowContext(ctx, `
		SELECT`+agentColumns+` FROM delivery_agents WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %d: %w", id, err)
	}
	return a, nil
}

func (r *repository) UpdateLocation(ctx context.Context, q db.DBTX, id int64, lat, lng float64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE delivery_agents
		SET lat = $2, lng = $3, location_updated_at = now(), updated_at = now()
		WHERE id = $1
	`, id, lat, lng)
	if err != nil {
		return fmt.Errorf("update agent location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAgentNotFound
	}
	return nil
}

func (r *repository) SetAvailability(ctx context.Context, q db.DBTX, id int64, available bool) error {
	res, err := q.ExecContext(ctx, `
		UPDATE delivery_agents SET is_available = $2, updated_at = now() WHERE id = $1
	`, id, available)
	if err != nil {
		return fmt.Errorf("set agent availability: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAgentNotFound
	}
	return nil
}

func (r *repository) Create(ctx context.Context, q db.DBTX, a *Agent) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO delivery_agents (name, phone, is_active, is_available, max_active_orders, commission_type, commission_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, a.Name, a.Phone, a.IsActive, a.IsAvailable, a.MaxActiveOrders, a.CommissionType, a.CommissionValue,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}
