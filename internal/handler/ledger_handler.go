package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bitledger/bitledger-go/internal/domain"
	"github.com/bitledger/bitledger-go/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type addTransactionRequest struct {
	Amount   float64 `json:"amount"`
	Type     string  `json:"type"`
	Category string  `json:"category,omitempty"`
	Date     string  `json:"date,omitempty"` // RFC3339, defaults to now
}

type addIncomeRequest struct {
	Amount float64 `json:"amount"`
}

type acceptedResponse struct {
	Status string    `json:"status"`
	ID     uuid.UUID `json:"id,omitempty"`
}

// addTransactionHandler accepts a new ledger entry. Success is observed via
// the published streams, so acceptance answers 202.
func addTransactionHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		date := time.Now()
		if req.Date != "" {
			parsed, err := time.Parse(time.RFC3339, req.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "date must be RFC3339")
				return
			}
			date = parsed
		}

		t := domain.Transaction{
			ID:       uuid.New(),
			Amount:   req.Amount,
			Type:     domain.TransactionType(req.Type),
			Category: domain.Category(req.Category),
			Date:     date,
		}

		if err := ledger.AddTransaction(r.Context(), t); err != nil {
			var validation *domain.ErrValidation
			if errors.As(err, &validation) {
				writeError(w, http.StatusBadRequest, validation.Error())
				return
			}
			logger.Error("add transaction failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", ID: t.ID})
	}
}

// addIncomeHandler is the convenience route for recording income.
func addIncomeHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addIncomeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		if err := ledger.AddIncome(r.Context(), req.Amount); err != nil {
			var validation *domain.ErrValidation
			if errors.As(err, &validation) {
				writeError(w, http.StatusBadRequest, validation.Error())
				return
			}
			logger.Error("add income failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
	}
}

func loadNextPageHandler(ledger *service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ledger.LoadNextPage(r.Context())
		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
	}
}

func getGroupsHandler(ledger *service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"groups": ledger.Groups().Get(),
		})
	}
}

func hasMorePagesHandler(ledger *service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{
			"has_more": ledger.HasMorePages(r.Context()),
		})
	}
}

func getBalanceHandler(ledger *service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]float64{
			"balance": ledger.Balance().Get(),
		})
	}
}
