package postgres

import (
	"context"
	"errors"
	"testing"

	"yield-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	id := uuid.New()
	now := testNow()

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "status", "email_verified", "pin_hash",
			"preferred_payout_currency", "created_at", "updated_at"}).
			AddRow(id, "investor@example.com", domain.AccountStatusActive, true, strPtr("$argon2id$..."), strPtr("ETH"), now, now))

	a, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.True(t, a.IsActive())
	assert.True(t, a.HasPin())
	assert.Equal(t, "ETH", *a.PreferredPayoutCurrency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetPayoutAddress(t *testing.T) {
	tests := []struct {
		name    string
		rows    *pgxmock.Rows
		err     error
		want    string
		wantErr bool
	}{
		{
			name: "on file",
			rows: pgxmock.NewRows([]string{"address"}).AddRow("0xpayout"),
			want: "0xpayout",
		},
		{
			name: "none on file",
			rows: pgxmock.NewRows([]string{"address"}),
			want: "",
		},
		{
			name:    "query error",
			err:     errors.New("connection reset"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewAccountRepo(mock)
			userID := uuid.New()

			q := mock.ExpectQuery("SELECT address FROM payout_addresses").WithArgs(userID, "ETH")
			if tt.err != nil {
				q.WillReturnError(tt.err)
			} else {
				q.WillReturnRows(tt.rows)
			}

			addr, err := repo.GetPayoutAddress(context.Background(), userID, "eth")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr)
		})
	}
}
