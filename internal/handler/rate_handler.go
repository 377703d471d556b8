package handler

import (
	"net/http"

	"github.com/bitledger/bitledger-go/internal/service"
)

func getRateHandler(rate *service.RateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]float64{
			"rate": rate.Rate().Get(),
		})
	}
}

func rateStreamHandler(rate *service.RateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveSSE(w, r, rate.Rate())
	}
}

func balanceStreamHandler(ledger *service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveSSE(w, r, ledger.Balance())
	}
}

func groupsStreamHandler(ledger *service.LedgerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveSSE(w, r, ledger.Groups())
	}
}
