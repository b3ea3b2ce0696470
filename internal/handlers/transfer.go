package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/pixwallet/internal/apperrors"
	"github.com/nkiryanov/pixwallet/internal/handlers/render"
	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/service/transfer"
)

func handleTransfer(transferService transferService, l logger.Logger) http.Handler {
	type request struct {
		FromWalletID uuid.UUID       `json:"from_wallet_id" validate:"required"`
		ToPixKey     string          `json:"to_pix_key" validate:"required"`
		Amount       decimal.Decimal `json:"amount" validate:"required"`
	}

	type response struct {
		EndToEndID string `json:"end_to_end_id"`
		Status     string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idempotencyKey := r.Header.Get("Idempotency-Key")
		if idempotencyKey == "" {
			render.ServiceError(w, "Idempotency-Key header is required", http.StatusBadRequest)
			return
		}

		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		result, err := transferService.Initiate(r.Context(), idempotencyKey, req.FromWalletID, req.ToPixKey, req.Amount)

		var balanceErr *apperrors.InsufficientBalanceError

		switch {
		case err == nil:
			render.JSON(w, response{EndToEndID: result.EndToEndID, Status: result.Status})
		case errors.Is(err, apperrors.ErrAmountNotPositive):
			render.ServiceError(w, "Amount must be positive", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrWalletNotFound):
			render.ServiceError(w, "Wallet not found", http.StatusNotFound)
		case errors.As(err, &balanceErr):
			renderInsufficientBalance(w, balanceErr)
		default:
			l.Error("Failed to initiate transfer", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleWebhook(transferService transferService, l logger.Logger) http.Handler {
	type request struct {
		EventID    string `json:"event_id" validate:"required"`
		EndToEndID string `json:"end_to_end_id" validate:"required"`
		EventType  string `json:"event_type" validate:"required,oneof=CONFIRMED REJECTED"`
		OccurredAt string `json:"occurred_at" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			render.ServiceError(w, "Invalid 'occurred_at' time, expected RFC3339", http.StatusBadRequest)
			return
		}

		err = transferService.Settle(r.Context(), transfer.Event{
			EventID:    req.EventID,
			EndToEndID: req.EndToEndID,
			Outcome:    req.EventType,
			OccurredAt: occurredAt,
		})

		switch {
		case err == nil:
			// Webhook convention: plain 200, idempotent no-ops included
			w.WriteHeader(http.StatusOK)
		case errors.Is(err, apperrors.ErrTransactionNotFound):
			render.ServiceError(w, "Transfer not found", http.StatusNotFound)
		default:
			l.Error("Failed to process settlement event", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
