package e2e

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/pixwallet/internal/handlers"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/repository/postgres"
	"github.com/nkiryanov/pixwallet/internal/service/transfer"
	"github.com/nkiryanov/pixwallet/internal/service/wallet"
	"github.com/nkiryanov/pixwallet/internal/testutil"
)

// Shared secret the test server verifies webhook tokens against
const WebhookSecret = "test-secret"

type Services struct {
	WalletService   *wallet.Service
	TransferService *transfer.Service
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.InTx with it
func ServeInTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.InTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)

		walletService := wallet.NewService(storage)
		transferService := transfer.NewService(storage, walletService, logger.NewNoOp())

		router := handlers.NewRouter(
			walletService,
			transferService,
			WebhookSecret,
			logger.NewNoOp(),
		)

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			WalletService:   walletService,
			TransferService: transferService,
		})
	})
}

// WebhookToken signs a short lived bearer token the way the settlement
// source does
func WebhookToken(t *testing.T) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "settlement-feed",
		"exp": time.Now().Add(time.Minute).Unix(),
	})

	s, err := token.SignedString([]byte(WebhookSecret))
	require.NoError(t, err, "failed to sign webhook token")
	return s
}
