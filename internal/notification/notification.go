// Package notification records admin notifications and pushes them to the
// admin Telegram chat.
package notification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"snapkart-be/internal/db"
)

type Kind string

const (
	KindBookingConfirmed Kind = "BOOKING_CONFIRMED"
	KindPaymentOrphaned  Kind = "PAYMENT_ORPHANED"
)

type Notification struct {
	ID            int64     `json:"id"`
	Kind          Kind      `json:"kind"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	ReferenceType string    `json:"reference_type,omitempty"`
	ReferenceID   int64     `json:"reference_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Repository interface {
	Insert(ctx context.Context, q db.DBTX, n *Notification) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, q db.DBTX, n *Notification) error {
	var refType sql.NullString
	var refID sql.NullInt64
	if n.ReferenceType != "" {
		refType = sql.NullString{String: n.ReferenceType, Valid: true}
		refID = sql.NullInt64{Int64: n.ReferenceID, Valid: true}
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO admin_notifications (kind, title, message, reference_type, reference_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, n.Kind, n.Title, n.Message, refType, refID).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert admin notification: %w", err)
	}
	return nil
}
