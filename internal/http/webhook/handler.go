package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Abhishek001-1/WalnutFolks-FSE/internal/transaction"
)

type Handler struct {
	svc *transaction.Service
}

func NewHandler(svc *transaction.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/transactions", h.receive)
}

type transactionPayload struct {
	TransactionID      string          `json:"transaction_id"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
}

// receive acknowledges a webhook delivery with 202 whether it is the first
// delivery of the transaction or a redelivery. Senders retry on anything
// else, so duplicates must not look like failures.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	var payload transactionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if payload.TransactionID == "" {
		http.Error(w, "transaction_id is required", http.StatusBadRequest)
		return
	}

	// Correlates log lines for one delivery; distinct from the transaction
	// id, which repeats across redeliveries.
	deliveryID := uuid.NewString()

	err := h.svc.Receive(r.Context(), transaction.ReceiveParams{
		TransactionID:      payload.TransactionID,
		SourceAccount:      payload.SourceAccount,
		DestinationAccount: payload.DestinationAccount,
		Amount:             payload.Amount,
		Currency:           payload.Currency,
	})
	if err != nil {
		slog.Error("failed to ingest webhook",
			"delivery_id", deliveryID, "transaction_id", payload.TransactionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	slog.Debug("webhook accepted",
		"delivery_id", deliveryID, "transaction_id", payload.TransactionID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)

	if _, err := w.Write([]byte("{}")); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
