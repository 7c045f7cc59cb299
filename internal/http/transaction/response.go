package transaction

import (
	"encoding/json"
	"time"

	"github.com/Abhishek001-1/WalnutFolks-FSE/internal/transaction"
)

type transactionResponse struct {
	TransactionID      string             `json:"transaction_id"`
	SourceAccount      string             `json:"source_account"`
	DestinationAccount string             `json:"destination_account"`
	Amount             json.Number        `json:"amount"`
	Currency           string             `json:"currency"`
	Status             transaction.Status `json:"status"`
	CreatedAt          time.Time          `json:"created_at"`
	ProcessedAt        *time.Time         `json:"processed_at,omitempty"`
}

func toResponse(tx *transaction.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID:      tx.TransactionID,
		SourceAccount:      tx.SourceAccount,
		DestinationAccount: tx.DestinationAccount,
		// json.Number keeps the amount a JSON number without going through
		// float64 on the way out.
		Amount:      json.Number(tx.Amount.String()),
		Currency:    tx.Currency,
		Status:      tx.Status,
		CreatedAt:   tx.CreatedAt,
		ProcessedAt: tx.ProcessedAt,
	}
}
