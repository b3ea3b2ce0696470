package pix

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/pixwallet/internal/models"
	"github.com/nkiryanov/pixwallet/internal/testutil"
	"github.com/nkiryanov/pixwallet/tests/e2e"
)

const (
	TransfersURL = "/api/pix/transfers"
	WebhookURL   = "/api/pix/webhook"

	toPixKey = "to-user@bank.test"
)

func Test_PixTransfer(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	e2e.ServeInTx(pg.Pool, t, func(tx pgx.Tx, srvURL string, s e2e.Services) {
		// Wallets funded per subtest: source holds 1000.00, destination
		// is reachable by pix key
		setup := func(t *testing.T) (from uuid.UUID, to uuid.UUID) {
			fromWallet, err := s.WalletService.Create(t.Context(), "from-user")
			require.NoError(t, err)
			_, err = s.WalletService.Deposit(t.Context(), fromWallet.ID, decimal.RequireFromString("1000.00"))
			require.NoError(t, err)

			toWallet, err := s.WalletService.Create(t.Context(), "to-user")
			require.NoError(t, err)
			_, err = s.WalletService.AttachPixKey(t.Context(), toWallet.ID, toPixKey)
			require.NoError(t, err)

			return fromWallet.ID, toWallet.ID
		}

		transferReq := func(t *testing.T, idempotencyKey string, body string) (*http.Response, string) {
			req, err := http.NewRequest(http.MethodPost, srvURL+TransfersURL, strings.NewReader(body))
			require.NoError(t, err, "failed to create request")
			req.Header.Set("Content-Type", "application/json")
			if idempotencyKey != "" {
				req.Header.Set("Idempotency-Key", idempotencyKey)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err, "failed to send request")
			defer resp.Body.Close() // nolint:errcheck

			respBody, err := io.ReadAll(resp.Body)
			require.NoError(t, err, "failed to read response body")
			return resp, string(respBody)
		}

		webhookReq := func(t *testing.T, token string, body string) (*http.Response, string) {
			req, err := http.NewRequest(http.MethodPost, srvURL+WebhookURL, strings.NewReader(body))
			require.NoError(t, err, "failed to create request")
			req.Header.Set("Content-Type", "application/json")
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err, "failed to send request")
			defer resp.Body.Close() // nolint:errcheck

			respBody, err := io.ReadAll(resp.Body)
			require.NoError(t, err, "failed to read response body")
			return resp, string(respBody)
		}

		webhookBody := func(eventID string, endToEndID string, eventType string) string {
			return fmt.Sprintf(`{
				"event_id": %q,
				"end_to_end_id": %q,
				"event_type": %q,
				"occurred_at": %q
			}`, eventID, endToEndID, eventType, time.Now().Format(time.RFC3339))
		}

		balance := func(t *testing.T, walletID uuid.UUID) decimal.Decimal {
			b, err := s.WalletService.Balance(t.Context(), walletID, nil)
			require.NoError(t, err)
			return b
		}

		t.Run("full transfer flow", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				from, to := setup(t)

				body := fmt.Sprintf(`{
					"from_wallet_id": %q,
					"to_pix_key": %q,
					"amount": "100.50"
				}`, from, toPixKey)

				resp, respBody := transferReq(t, "e2e-key-1", body)
				require.Equalf(t, http.StatusOK, resp.StatusCode, "transfer should be accepted. Body: %s", respBody)
				require.JSONEq(t, `{
					"end_to_end_id": "e2e-key-1",
					"status": "PENDING"
				}`, respBody)

				// Pending transfer must not move balances
				require.True(t, balance(t, from).Equal(decimal.RequireFromString("1000.00")))
				require.True(t, balance(t, to).IsZero())

				// Retry with the same key returns the same answer
				resp, respBody = transferReq(t, "e2e-key-1", body)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				require.JSONEq(t, `{
					"end_to_end_id": "e2e-key-1",
					"status": "PENDING"
				}`, respBody)

				// Settlement feed confirms the transfer
				resp, respBody = webhookReq(t, e2e.WebhookToken(t), webhookBody("evt-1", "e2e-key-1", "CONFIRMED"))
				require.Equalf(t, http.StatusOK, resp.StatusCode, "webhook should be accepted. Body: %s", respBody)

				require.True(t, balance(t, from).Equal(decimal.RequireFromString("899.50")), "source should be debited")
				require.True(t, balance(t, to).Equal(decimal.RequireFromString("100.50")), "destination should be credited")

				// Repeated event does not move balances twice
				resp, _ = webhookReq(t, e2e.WebhookToken(t), webhookBody("evt-1", "e2e-key-1", "CONFIRMED"))
				require.Equal(t, http.StatusOK, resp.StatusCode)
				require.True(t, balance(t, from).Equal(decimal.RequireFromString("899.50")))

				// Both legs are visible in the ledgers as confirmed
				transactions, err := s.WalletService.ListTransactions(t.Context(), from)
				require.NoError(t, err)
				require.Len(t, transactions, 2)
				require.Equal(t, models.TransactionTypeTransferOut, transactions[0].Type)
				require.Equal(t, models.TransactionStatusConfirmed, transactions[0].Status)
			})
		})

		t.Run("rejected transfer", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				from, to := setup(t)

				body := fmt.Sprintf(`{
					"from_wallet_id": %q,
					"to_pix_key": %q,
					"amount": "100.50"
				}`, from, toPixKey)

				resp, _ := transferReq(t, "e2e-key-1", body)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				resp, respBody := webhookReq(t, e2e.WebhookToken(t), webhookBody("evt-1", "e2e-key-1", "REJECTED"))
				require.Equalf(t, http.StatusOK, resp.StatusCode, "webhook should be accepted. Body: %s", respBody)

				require.True(t, balance(t, from).Equal(decimal.RequireFromString("1000.00")), "rejected transfer must not move balances")
				require.True(t, balance(t, to).IsZero())
			})
		})

		t.Run("insufficient balance", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				from, _ := setup(t)

				body := fmt.Sprintf(`{
					"from_wallet_id": %q,
					"to_pix_key": %q,
					"amount": "2000.00"
				}`, from, toPixKey)

				resp, respBody := transferReq(t, "e2e-key-1", body)

				require.Equalf(t, http.StatusUnprocessableEntity, resp.StatusCode, "overdraft should return 422. Body: %s", respBody)
				require.JSONEq(t, `{
					"error": "service_error",
					"message": "Insufficient balance",
					"balance": "1000"
				}`, respBody)
			})
		})

		t.Run("missing idempotency key", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				from, _ := setup(t)

				body := fmt.Sprintf(`{
					"from_wallet_id": %q,
					"to_pix_key": %q,
					"amount": "100.50"
				}`, from, toPixKey)

				resp, respBody := transferReq(t, "", body)

				require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "transfer without key should return 400. Body: %s", respBody)
			})
		})

		t.Run("unknown pix key", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				from, _ := setup(t)

				body := fmt.Sprintf(`{
					"from_wallet_id": %q,
					"to_pix_key": "nobody@bank.test",
					"amount": "100.50"
				}`, from)

				resp, _ := transferReq(t, "e2e-key-1", body)

				require.Equal(t, http.StatusNotFound, resp.StatusCode)
			})
		})

		t.Run("webhook without token", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				resp, respBody := webhookReq(t, "", webhookBody("evt-1", "e2e-key-1", "CONFIRMED"))

				require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
				require.JSONEq(t, `{
					"error": "service_error",
					"message": "Unauthorized"
				}`, respBody)
			})
		})

		t.Run("webhook for unknown transfer", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				resp, _ := webhookReq(t, e2e.WebhookToken(t), webhookBody("evt-1", "never-initiated", "CONFIRMED"))

				require.Equal(t, http.StatusNotFound, resp.StatusCode)
			})
		})

		t.Run("webhook with unsupported event type", func(t *testing.T) {
			testutil.InTx(tx, t, func(_ pgx.Tx) {
				resp, _ := webhookReq(t, e2e.WebhookToken(t), webhookBody("evt-1", "e2e-key-1", "PENDING"))

				require.Equal(t, http.StatusBadRequest, resp.StatusCode, "non terminal event type should fail validation")
			})
		})
	})
}
