// Package booking confirms paid table bookings.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"snapkart-be/internal/apperr"
	"snapkart-be/internal/db"
	"snapkart-be/internal/logger"
	"snapkart-be/internal/notification"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

type TableBooking struct {
	ID           int64
	UserID       int64
	RestaurantID int64
	Guests       int
	BookedFor    time.Time
	Amount       decimal.Decimal
	Status       Status
	ConfirmedAt  *time.Time
}

var (
	ErrBookingNotFound  = apperr.NotFound("table booking not found")
	ErrBookingCancelled = apperr.Conflict("table booking was cancelled")
)

type Repository interface {
	Get(ctx context.Context, q db.DBTX, id int64, forUpdate bool) (*TableBooking, error)
	Confirm(ctx context.Context, q db.DBTX, id int64) error
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) Get(ctx context.Context, q db.DBTX, id int64, forUpdate bool) (*TableBooking, error) {
	query := `
		SELECT id, user_id, restaurant_id, guests, booked_for, amount, status, confirmed_at
		FROM table_bookings WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		b           TableBooking
		confirmedAt sql.NullTime
	)
	err := q.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.UserID, &b.RestaurantID, &b.Guests, &b.BookedFor, &b.Amount, &b.Status, &confirmedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	if confirmedAt.Valid {
		b.ConfirmedAt = &confirmedAt.Time
	}
	return &b, nil
}

func (r *repository) Confirm(ctx context.Context, q db.DBTX, id int64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE table_bookings SET status = 'CONFIRMED', confirmed_at = now()
		WHERE id = $1 AND status = 'PENDING'
	`, id)
	if err != nil {
		return fmt.Errorf("confirm booking %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Conflict("table booking is no longer pending")
	}
	return nil
}

// Confirmer marks a booking CONFIRMED once its payment is captured and
// stores the admin notification in the same transaction.
type Confirmer struct {
	repo          Repository
	notifications notification.Repository
}

func NewConfirmer(repo Repository, notifications notification.Repository) *Confirmer {
	return &Confirmer{repo: repo, notifications: notifications}
}

// ConfirmPaidTx returns the notification to publish after commit, or nil
// when the booking was already confirmed.
func (c *Confirmer) ConfirmPaidTx(ctx context.Context, q db.DBTX, bookingID int64) (*notification.Notification, error) {
	b, err := c.repo.Get(ctx, q, bookingID, true)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case StatusConfirmed:
		return nil, nil
	case StatusCancelled:
		return nil, ErrBookingCancelled
	}

	if err := c.repo.Confirm(ctx, q, b.ID); err != nil {
		return nil, err
	}

	n := &notification.Notification{
		Kind:  notification.KindBookingConfirmed,
		Title: "New table booking",
		Message: fmt.Sprintf("Booking #%d for %d guests at %s is paid (%s).",
			b.ID, b.Guests, b.BookedFor.Format("2006-01-02 15:04"), b.Amount.StringFixed(2)),
		ReferenceType: "BOOKING",
		ReferenceID:   b.ID,
	}
	if err := c.notifications.Insert(ctx, q, n); err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("table booking confirmed",
		zap.String("layer", "booking"),
		zap.Int64("booking_id", b.ID),
		zap.Int64("notification_id", n.ID),
	)
	return n, nil
}
