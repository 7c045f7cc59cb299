package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=transaction
type Repository interface {
	InsertIfAbsent(ctx context.Context, tx *Transaction) (bool, error)
	GetTransaction(ctx context.Context, transactionID string) (*Transaction, error)
	MarkProcessed(ctx context.Context, transactionID string) error
	ListStalled(ctx context.Context, olderThan time.Time) ([]string, error)
}

// Scheduler hands a freshly stored transaction off to background processing.
// Implementations must not block the caller.
type Scheduler interface {
	Schedule(transactionID string)
}

type Service struct {
	repo      Repository
	scheduler Scheduler
}

func NewService(repo Repository, scheduler Scheduler) *Service {
	return &Service{repo: repo, scheduler: scheduler}
}

type ReceiveParams struct {
	TransactionID      string
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	Currency           string
}

// Receive stores the transaction at most once and schedules background
// processing for it. Redelivery of an identifier that was already stored is
// expected webhook behavior: the duplicate is absorbed, nothing is scheduled,
// and the caller still gets a nil error so the sender sees the delivery as
// accepted. Only a store failure is reported.
func (s *Service) Receive(ctx context.Context, params ReceiveParams) error {
	tx := &Transaction{
		TransactionID:      params.TransactionID,
		SourceAccount:      params.SourceAccount,
		DestinationAccount: params.DestinationAccount,
		Amount:             params.Amount,
		Currency:           params.Currency,
		Status:             StatusProcessing,
		CreatedAt:          time.Now().UTC(),
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, tx)
	if err != nil {
		return fmt.Errorf("storing transaction: %w", err)
	}

	// Exactly one successful insert per identifier, so exactly one task.
	if inserted {
		s.scheduler.Schedule(tx.TransactionID)
	}

	return nil
}

// Get returns the current state of a transaction, ErrNotFound if the
// identifier was never stored.
func (s *Service) Get(ctx context.Context, transactionID string) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, transactionID)
}
