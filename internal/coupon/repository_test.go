package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var couponCols = []string{
	"id", "code", "discount_type", "value", "is_active", "expires_at",
	"usage_limit", "one_time_per_user", "used_count", "created_at",
}

func TestRepository_GetByCode(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	repo := NewRepository()
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(`FROM coupons WHERE code = \$1 FOR UPDATE`).
		WithArgs("SAVE10").
		WillReturnRows(sqlmock.NewRows(couponCols).
			AddRow(1, "SAVE10", "PERCENTAGE", "10.00", true, nil, 100, true, 4, now))

	c, err := repo.GetByCode(ctx, conn, "SAVE10", true)
	require.NoError(t, err)
	assert.Equal(t, DiscountPercentage, c.DiscountType)
	assert.Nil(t, c.ExpiresAt)
	require.NotNil(t, c.UsageLimit)
	assert.Equal(t, 100, *c.UsageLimit)
	assert.Equal(t, 4, c.UsedCount)

	mock.ExpectQuery(`FROM coupons WHERE code = \$1$`).
		WithArgs("NOPE").
		WillReturnRows(sqlmock.NewRows(couponCols))

	_, err = repo.GetByCode(ctx, conn, "NOPE", false)
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_IncrementUsage(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	repo := NewRepository()

	mock.ExpectExec(`UPDATE coupons\s+SET used_count = used_count \+ 1\s+WHERE id = \$1 AND \(usage_limit IS NULL OR used_count < usage_limit\)`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.IncrementUsage(context.Background(), conn, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE coupons`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.IncrementUsage(context.Background(), conn, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_InsertUsage_UniqueViolation(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec(`INSERT INTO coupon_usages`).
		WithArgs(int64(1), int64(7)).
		WillReturnError(&pq.Error{Code: "23505"})

	err = NewRepository().InsertUsage(context.Background(), conn, 1, 7)
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestRepository_Release(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec(`DELETE FROM coupon_usages WHERE coupon_id = \$1 AND user_id = \$2`).
		WithArgs(int64(1), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE coupons SET used_count = used_count - 1 WHERE id = \$1 AND used_count > 0`).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewRepository().Release(context.Background(), conn, 1, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create_Duplicate(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery(`INSERT INTO coupons`).WillReturnError(&pq.Error{Code: "23505"})

	err = NewRepository().Create(context.Background(), conn, &Coupon{Code: "DUP", DiscountType: DiscountFlat})
	assert.ErrorIs(t, err, ErrCodeExists)
}
