package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appHttp "github.com/Abhishek001-1/WalnutFolks-FSE/internal/http"
	healthHandler "github.com/Abhishek001-1/WalnutFolks-FSE/internal/http/health"
	txHandler "github.com/Abhishek001-1/WalnutFolks-FSE/internal/http/transaction"
	webhookHandler "github.com/Abhishek001-1/WalnutFolks-FSE/internal/http/webhook"
	"github.com/Abhishek001-1/WalnutFolks-FSE/internal/transaction"
)

// memRepo is an in-memory transaction.Repository backing the end-to-end
// handler tests.
type memRepo struct {
	mu      sync.Mutex
	records map[string]transaction.Transaction
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]transaction.Transaction)}
}

func (m *memRepo) InsertIfAbsent(_ context.Context, tx *transaction.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[tx.TransactionID]; ok {
		return false, nil
	}

	m.records[tx.TransactionID] = *tx

	return true, nil
}

func (m *memRepo) GetTransaction(_ context.Context, transactionID string) (*transaction.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.records[transactionID]
	if !ok {
		return nil, transaction.ErrNotFound
	}

	return &tx, nil
}

func (m *memRepo) MarkProcessed(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.records[transactionID]
	if !ok {
		return nil
	}

	now := time.Now().UTC()
	tx.Status = transaction.StatusProcessed
	tx.ProcessedAt = &now
	m.records[transactionID] = tx

	return nil
}

func (m *memRepo) ListStalled(_ context.Context, olderThan time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string

	for id, tx := range m.records {
		if tx.Status == transaction.StatusProcessing && tx.CreatedAt.Before(olderThan) {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

func (m *memRepo) purge(transactionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, transactionID)
}

// countingScheduler forwards to the real processor while recording how many
// tasks were scheduled, so tests can prove duplicates never schedule twice.
type countingScheduler struct {
	mu    sync.Mutex
	count int
	next  transaction.Scheduler
}

func (c *countingScheduler) Schedule(transactionID string) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()

	c.next.Schedule(transactionID)
}

func (c *countingScheduler) scheduled() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

type testEnv struct {
	router    http.Handler
	repo      *memRepo
	scheduler *countingScheduler
}

func newTestEnv(t *testing.T, delay time.Duration) *testEnv {
	t.Helper()

	repo := newMemRepo()

	processor := transaction.NewProcessor(repo, delay, discardLogger())
	t.Cleanup(processor.Close)

	scheduler := &countingScheduler{next: processor}
	svc := transaction.NewService(repo, scheduler)

	router := appHttp.New(
		webhookHandler.NewHandler(svc),
		txHandler.NewHandler(svc),
		healthHandler.NewHandler(),
	)

	return &testEnv{router: router, repo: repo, scheduler: scheduler}
}

func (e *testEnv) postWebhook(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	return rec
}

func (e *testEnv) getTransaction(transactionID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/transactions/"+transactionID, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	return rec
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// statusOf is safe to call from Eventually's polling goroutine: it never
// fails the test, it just reports what the query path currently returns.
func statusOf(rec *httptest.ResponseRecorder) string {
	if rec.Code != http.StatusOK {
		return ""
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		return ""
	}

	status, _ := body["status"].(string)

	return status
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	dec := json.NewDecoder(rec.Body)
	dec.UseNumber()

	var body map[string]any
	require.NoError(t, dec.Decode(&body))

	return body
}

const webhookBody = `{
	"transaction_id": "tx-100",
	"source_account": "A",
	"destination_account": "B",
	"amount": 50.0,
	"currency": "USD"
}`

func TestWebhookEndToEnd(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)

	rec := env.postWebhook(webhookBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	// Immediately after acceptance the record is visible and still waiting
	// on settlement.
	rec = env.getTransaction("tx-100")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "PROCESSING", body["status"])
	assert.Equal(t, "A", body["source_account"])
	assert.Equal(t, "B", body["destination_account"])
	assert.Equal(t, json.Number("50"), body["amount"])
	assert.Equal(t, "USD", body["currency"])
	assert.NotContains(t, body, "processed_at")

	createdAtRaw, ok := body["created_at"].(string)
	require.True(t, ok)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtRaw)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return statusOf(env.getTransaction("tx-100")) == "PROCESSED"
	}, time.Second, 5*time.Millisecond)

	body = decodeBody(t, env.getTransaction("tx-100"))
	require.Contains(t, body, "processed_at")

	processedAt, err := time.Parse(time.RFC3339Nano, body["processed_at"].(string))
	require.NoError(t, err)
	assert.False(t, processedAt.Before(createdAt))
	assert.Equal(t, createdAtRaw, body["created_at"])
}

func TestWebhookDuplicateDelivery(t *testing.T) {
	env := newTestEnv(t, 30*time.Millisecond)

	rec := env.postWebhook(webhookBody)
	require.Equal(t, http.StatusAccepted, rec.Code)

	firstBody := decodeBody(t, env.getTransaction("tx-100"))

	// Redelivery before settlement: still accepted, nothing re-scheduled,
	// original record untouched.
	rec = env.postWebhook(webhookBody)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
	assert.Equal(t, 1, env.scheduler.scheduled())

	secondBody := decodeBody(t, env.getTransaction("tx-100"))
	assert.Equal(t, firstBody["created_at"], secondBody["created_at"])

	require.Eventually(t, func() bool {
		return statusOf(env.getTransaction("tx-100")) == "PROCESSED"
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, env.scheduler.scheduled())
}

func TestWebhookPurgedBeforeSettlement(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)

	rec := env.postWebhook(webhookBody)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// Simulates an external purge racing the settlement delay. The task must
	// finish quietly without recreating or updating anything.
	env.repo.purge("tx-100")

	time.Sleep(60 * time.Millisecond)

	rec = env.getTransaction("tx-100")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)

	t.Run("InvalidJSON", func(t *testing.T) {
		rec := env.postWebhook(`{"transaction_id": `)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingTransactionID", func(t *testing.T) {
		rec := env.postWebhook(`{"source_account": "A", "amount": 1, "currency": "USD"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("WrongContentType", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/transactions", strings.NewReader(webhookBody))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	assert.Zero(t, env.scheduler.scheduled())
}

func TestGetUnknownTransaction(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)

	rec := env.getTransaction("tx-never-seen")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "HEALTHY", body["status"])
	assert.Contains(t, body, "current_time")
}
