package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_ActiveRules(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	now := time.Now()
	cols := []string{
		"id", "restaurant_id", "min_order", "max_order", "min_distance", "max_distance",
		"charge_type", "charge_amount", "base_distance", "per_km_charge", "is_active", "created_at",
	}
	mock.ExpectQuery(`FROM delivery_pricing_rules\s+WHERE restaurant_id = \$1 AND is_active = TRUE`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 1, "0.00", nil, 0.0, 5.0, "FLAT", "30.00", 0.0, "0.00", true, now).
			AddRow(2, 1, "500.00", "1000.00", 0.0, nil, "FREE", "0.00", 0.0, "0.00", true, now))

	rules, err := NewRepository().ActiveRules(context.Background(), conn, 1)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Nil(t, rules[0].MaxOrder)
	require.NotNil(t, rules[0].MaxDistance)
	assert.Equal(t, 5.0, *rules[0].MaxDistance)
	assert.Equal(t, ChargeFlat, rules[0].ChargeType)

	require.NotNil(t, rules[1].MaxOrder)
	assert.True(t, dec("1000").Equal(*rules[1].MaxOrder))
	assert.Nil(t, rules[1].MaxDistance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Deactivate(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	repo := NewRepository()

	mock.ExpectExec(`UPDATE delivery_pricing_rules SET is_active = FALSE`).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Deactivate(context.Background(), conn, 3))

	mock.ExpectExec(`UPDATE delivery_pricing_rules`).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Deactivate(context.Background(), conn, 4), ErrRuleNotFound)
}
