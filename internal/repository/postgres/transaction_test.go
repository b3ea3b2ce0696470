package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/models"
	"github.com/nkiryanov/pixwallet/internal/repository"
	"github.com/nkiryanov/pixwallet/internal/testutil"
)

func TestTransaction(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	inTx := func(t *testing.T, outerTx DBTX, fn func(pgx.Tx, repository.Storage, models.Wallet)) {
		testutil.InTx(outerTx, t, func(innerTx pgx.Tx) {
			storage := NewStorage(innerTx)
			wallet, err := storage.Wallet().CreateWallet(t.Context(), "test-user")
			require.NoError(t, err, "creating wallet should not fail")

			fn(innerTx, storage, wallet)
		})
	}

	newEntry := func(walletID uuid.UUID, endToEndID string, amount string, createdAt time.Time) models.Transaction {
		return models.Transaction{
			ID:         uuid.New(),
			EndToEndID: endToEndID,
			WalletID:   walletID,
			Amount:     decimal.RequireFromString(amount),
			Type:       models.TransactionTypeDeposit,
			Status:     models.TransactionStatusConfirmed,
			CreatedAt:  createdAt,
			UpdatedAt:  createdAt,
		}
	}

	t.Run("CreateTransaction", func(t *testing.T) {
		t.Run("create ok", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage, wallet models.Wallet) {
				entry := newEntry(wallet.ID, "OUT:key-1", "-10.00", time.Now())
				entry.Type = models.TransactionTypeTransferOut
				entry.Status = models.TransactionStatusPending
				entry.PixKey = "dest@bank.test"

				created, err := storage.Transaction().CreateTransaction(t.Context(), entry)

				require.NoError(t, err)
				require.Equal(t, entry.ID, created.ID)
				require.Equal(t, "OUT:key-1", created.EndToEndID)
				require.Equal(t, wallet.ID, created.WalletID)
				require.True(t, created.Amount.Equal(entry.Amount), "amount should match")
				require.Equal(t, models.TransactionTypeTransferOut, created.Type)
				require.Equal(t, models.TransactionStatusPending, created.Status)
				require.Equal(t, "dest@bank.test", created.PixKey)
			})
		})

		t.Run("duplicate end to end id fail", func(t *testing.T) {
			inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage, wallet models.Wallet) {
				_, err := storage.Transaction().CreateTransaction(t.Context(), newEntry(wallet.ID, "OUT:key-1", "10.00", time.Now()))
				require.NoError(t, err)

				_, err = storage.Transaction().CreateTransaction(t.Context(), newEntry(wallet.ID, "OUT:key-1", "10.00", time.Now()))

				require.Error(t, err, "duplicate end to end id should fail")
				require.ErrorIs(t, err, apperrors.ErrTransactionAlreadyExists)
			})
		})
	})

	t.Run("GetByEndToEndID", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage, wallet models.Wallet) {
			created, err := storage.Transaction().CreateTransaction(t.Context(), newEntry(wallet.ID, "OUT:key-1", "10.00", time.Now()))
			require.NoError(t, err)

			t.Run("get existing", func(t *testing.T) {
				got, err := storage.Transaction().GetByEndToEndID(t.Context(), "OUT:key-1")

				require.NoError(t, err)
				require.Equal(t, created.ID, got.ID)
			})

			t.Run("get nonexistent", func(t *testing.T) {
				_, err := storage.Transaction().GetByEndToEndID(t.Context(), "OUT:unknown")

				require.ErrorIs(t, err, apperrors.ErrTransactionNotFound, "should return well known error")
			})
		})
	})

	t.Run("SetStatus", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage, wallet models.Wallet) {
			entry := newEntry(wallet.ID, "OUT:key-1", "-10.00", time.Now())
			entry.Status = models.TransactionStatusPending
			_, err := storage.Transaction().CreateTransaction(t.Context(), entry)
			require.NoError(t, err)

			t.Run("set ok", func(t *testing.T) {
				updated, err := storage.Transaction().SetStatus(t.Context(), "OUT:key-1", models.TransactionStatusConfirmed)

				require.NoError(t, err)
				require.Equal(t, models.TransactionStatusConfirmed, updated.Status)
				require.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))
			})

			t.Run("nonexistent entry", func(t *testing.T) {
				_, err := storage.Transaction().SetStatus(t.Context(), "OUT:unknown", models.TransactionStatusConfirmed)

				require.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
			})
		})
	})

	t.Run("ListByWallet", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage, wallet models.Wallet) {
			older := newEntry(wallet.ID, "e2e-older", "10.00", time.Now().Add(-2*time.Hour))
			newer := newEntry(wallet.ID, "e2e-newer", "-5.00", time.Now().Add(-1*time.Hour))

			_, err := storage.Transaction().CreateTransaction(t.Context(), older)
			require.NoError(t, err)
			_, err = storage.Transaction().CreateTransaction(t.Context(), newer)
			require.NoError(t, err)

			t.Run("newest first", func(t *testing.T) {
				list, err := storage.Transaction().ListByWallet(t.Context(), wallet.ID)

				require.NoError(t, err)
				require.Len(t, list, 2)
				require.Equal(t, newer.ID, list[0].ID, "first entry should be the most recent")
				require.Equal(t, older.ID, list[1].ID)
			})

			t.Run("empty for unknown wallet", func(t *testing.T) {
				list, err := storage.Transaction().ListByWallet(t.Context(), uuid.New())

				require.NoError(t, err)
				require.Empty(t, list)
			})
		})
	})

	t.Run("SumConfirmed", func(t *testing.T) {
		inTx(t, pg.Pool, func(tx pgx.Tx, storage repository.Storage, wallet models.Wallet) {
			now := time.Now()

			confirmed := newEntry(wallet.ID, "e2e-1", "100.50", now.Add(-2*time.Hour))
			laterConfirmed := newEntry(wallet.ID, "e2e-2", "-0.50", now.Add(-1*time.Hour))
			pending := newEntry(wallet.ID, "e2e-3", "999.00", now.Add(-90*time.Minute))
			pending.Status = models.TransactionStatusPending

			for _, entry := range []models.Transaction{confirmed, laterConfirmed, pending} {
				_, err := storage.Transaction().CreateTransaction(t.Context(), entry)
				require.NoError(t, err)
			}

			t.Run("sums confirmed only", func(t *testing.T) {
				sum, err := storage.Transaction().SumConfirmed(t.Context(), wallet.ID, now)

				require.NoError(t, err)
				require.True(t, sum.Equal(decimal.RequireFromString("100.00")), "got sum %s", sum)
			})

			t.Run("respects until", func(t *testing.T) {
				sum, err := storage.Transaction().SumConfirmed(t.Context(), wallet.ID, now.Add(-100*time.Minute))

				require.NoError(t, err)
				require.True(t, sum.Equal(decimal.RequireFromString("100.50")), "got sum %s", sum)
			})

			t.Run("zero for wallet without entries", func(t *testing.T) {
				sum, err := storage.Transaction().SumConfirmed(t.Context(), uuid.New(), now)

				require.NoError(t, err)
				require.True(t, sum.IsZero())
			})
		})
	})
}
