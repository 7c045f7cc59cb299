package transaction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a transaction.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusProcessed  Status = "PROCESSED"
)

// ErrNotFound is returned when no transaction exists for a given identifier.
var ErrNotFound = errors.New("transaction not found")

// Transaction represents a webhook-delivered financial transaction.
// TransactionID is caller-supplied and doubles as the idempotency key:
// the store accepts at most one record per identifier, no matter how many
// times the same notification is delivered.
type Transaction struct {
	TransactionID      string
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	Currency           string
	Status             Status
	CreatedAt          time.Time
	ProcessedAt        *time.Time // set exactly once, when Status becomes PROCESSED
}
