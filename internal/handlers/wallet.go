package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/handlers/render"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/models"
)

type walletResponse struct {
	ID        uuid.UUID       `json:"id"`
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	PixKey    *string         `json:"pix_key,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toWalletResponse(w models.Wallet) walletResponse {
	return walletResponse{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   w.Balance,
		PixKey:    w.PixKey,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func handleCreateWallet(walletService walletService, l logger.Logger) http.Handler {
	type request struct {
		UserID string `json:"user_id" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		wallet, err := walletService.Create(r.Context(), req.UserID)

		switch {
		case err == nil:
			render.JSONWithStatus(w, toWalletResponse(wallet), http.StatusCreated)
		case errors.Is(err, apperrors.ErrWalletAlreadyExists):
			render.ServiceError(w, "User already has a wallet", http.StatusConflict)
		default:
			l.Error("Failed to create wallet", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleAttachPixKey(walletService walletService, l logger.Logger) http.Handler {
	type request struct {
		Key string `json:"key" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		walletID, ok := walletIDFromPath(w, r)
		if !ok {
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		wallet, err := walletService.AttachPixKey(r.Context(), walletID, req.Key)

		switch {
		case err == nil:
			render.JSON(w, toWalletResponse(wallet))
		case errors.Is(err, apperrors.ErrWalletNotFound):
			render.ServiceError(w, "Wallet not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrPixKeyTaken):
			render.ServiceError(w, "Pix key already taken", http.StatusConflict)
		default:
			l.Error("Failed to attach pix key", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleGetBalance(walletService walletService, l logger.Logger) http.Handler {
	type response struct {
		WalletID uuid.UUID       `json:"wallet_id"`
		Balance  decimal.Decimal `json:"balance"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		walletID, ok := walletIDFromPath(w, r)
		if !ok {
			return
		}

		// Optional historical point: balance as the sum of confirmed
		// entries up to the given time
		var at *time.Time
		if rawAt := r.URL.Query().Get("at"); rawAt != "" {
			parsed, err := time.Parse(time.RFC3339, rawAt)
			if err != nil {
				render.ServiceError(w, "Invalid 'at' time, expected RFC3339", http.StatusBadRequest)
				return
			}
			at = &parsed
		}

		balance, err := walletService.Balance(r.Context(), walletID, at)

		switch {
		case err == nil:
			render.JSON(w, response{WalletID: walletID, Balance: balance})
		case errors.Is(err, apperrors.ErrWalletNotFound):
			render.ServiceError(w, "Wallet not found", http.StatusNotFound)
		default:
			l.Error("Failed to get balance", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListTransactions(walletService walletService, l logger.Logger) http.Handler {
	type transactionResponse struct {
		EndToEndID string          `json:"end_to_end_id"`
		Amount     decimal.Decimal `json:"amount"`
		Type       string          `json:"type"`
		Status     string          `json:"status"`
		PixKey     string          `json:"pix_key,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		walletID, ok := walletIDFromPath(w, r)
		if !ok {
			return
		}

		transactions, err := walletService.ListTransactions(r.Context(), walletID)

		switch {
		case err == nil:
			list := make([]transactionResponse, 0, len(transactions))
			for _, t := range transactions {
				list = append(list, transactionResponse{
					EndToEndID: t.EndToEndID,
					Amount:     t.Amount,
					Type:       t.Type,
					Status:     t.Status,
					PixKey:     t.PixKey,
					CreatedAt:  t.CreatedAt,
				})
			}
			render.JSON(w, list)
		case errors.Is(err, apperrors.ErrWalletNotFound):
			render.ServiceError(w, "Wallet not found", http.StatusNotFound)
		default:
			l.Error("Failed to list transactions", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleDeposit(walletService walletService, l logger.Logger) http.Handler {
	return handleBalanceMutation(walletService.Deposit, "deposit", l)
}

func handleWithdraw(walletService walletService, l logger.Logger) http.Handler {
	return handleBalanceMutation(walletService.Withdraw, "withdraw", l)
}

// Deposit and withdraw share the request/response shape and the error
// mapping, only the mutation differs
func handleBalanceMutation(
	mutate func(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (models.Wallet, error),
	name string,
	l logger.Logger,
) http.Handler {
	type request struct {
		Amount decimal.Decimal `json:"amount" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		walletID, ok := walletIDFromPath(w, r)
		if !ok {
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		wallet, err := mutate(r.Context(), walletID, req.Amount)

		var balanceErr *apperrors.InsufficientBalanceError

		switch {
		case err == nil:
			render.JSON(w, toWalletResponse(wallet))
		case errors.Is(err, apperrors.ErrAmountNotPositive):
			render.ServiceError(w, "Amount must be positive", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrWalletNotFound):
			render.ServiceError(w, "Wallet not found", http.StatusNotFound)
		case errors.As(err, &balanceErr):
			renderInsufficientBalance(w, balanceErr)
		default:
			l.Error("Failed to "+name, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func walletIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	walletID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Wallet not found", http.StatusNotFound)
		return uuid.UUID{}, false
	}

	return walletID, true
}

func renderInsufficientBalance(w http.ResponseWriter, balanceErr *apperrors.InsufficientBalanceError) {
	type response struct {
		Error   string          `json:"error"`
		Message string          `json:"message"`
		Balance decimal.Decimal `json:"balance"`
	}

	render.JSONWithStatus(w, response{
		Error:   render.ServiceErrorType,
		Message: "Insufficient balance",
		Balance: balanceErr.Balance,
	}, http.StatusUnprocessableEntity)
}
