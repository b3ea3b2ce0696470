package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/handlers/middleware"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/models"
	"github.com/nkiryanov/pixwallet/internal/service/transfer"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	walletService walletService,
	transferService transferService,
	webhookSecret string,
	logger logger.Logger,
) http.Handler {
	withWebhookAuth := middleware.WebhookAuth(webhookSecret)

	api := http.NewServeMux()

	api.Handle("POST /wallets", handleCreateWallet(walletService, logger))
	api.Handle("POST /wallets/{id}/pix-keys", handleAttachPixKey(walletService, logger))
	api.Handle("GET /wallets/{id}/balance", handleGetBalance(walletService, logger))
	api.Handle("GET /wallets/{id}/transactions", handleListTransactions(walletService, logger))
	api.Handle("POST /wallets/{id}/deposit", handleDeposit(walletService, logger))
	api.Handle("POST /wallets/{id}/withdraw", handleWithdraw(walletService, logger))

	api.Handle("POST /pix/transfers", handleTransfer(transferService, logger))
	api.Handle("POST /pix/webhook", withWebhookAuth(handleWebhook(transferService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type walletService interface {
	// Create wallet with zero balance
	// Has to return apperrors.ErrWalletAlreadyExists if the user already has one
	Create(ctx context.Context, userID string) (models.Wallet, error)

	// Attach pix key to the wallet
	// Has to return apperrors.ErrWalletNotFound or apperrors.ErrPixKeyTaken
	AttachPixKey(ctx context.Context, walletID uuid.UUID, pixKey string) (models.Wallet, error)

	Deposit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (models.Wallet, error)
	Withdraw(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (models.Wallet, error)

	// Current balance, or as-of balance when 'at' is not nil
	Balance(ctx context.Context, walletID uuid.UUID, at *time.Time) (decimal.Decimal, error)

	ListTransactions(ctx context.Context, walletID uuid.UUID) ([]models.Transaction, error)
}

type transferService interface {
	// Initiate transfer with at-most-once effect per idempotency key
	Initiate(ctx context.Context, idempotencyKey string, fromWalletID uuid.UUID, toPixKey string, amount decimal.Decimal) (transfer.Result, error)

	// Apply one settlement event
	// Has to return apperrors.ErrTransactionNotFound if the transfer was never initiated
	Settle(ctx context.Context, event transfer.Event) error
}
