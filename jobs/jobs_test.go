package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeSender struct {
	sales    []shared.SaleReceipt
	payments []shared.PaymentReceipt
	err      error
}

func (f *fakeSender) SendSaleReceipt(_ context.Context, r shared.SaleReceipt) error {
	f.sales = append(f.sales, r)
	return f.err
}

func (f *fakeSender) SendPaymentReceipt(_ context.Context, r shared.PaymentReceipt) error {
	f.payments = append(f.payments, r)
	return f.err
}

type fakePurger struct {
	retention time.Duration
	purged    int64
}

func (f *fakePurger) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	f.retention = olderThan
	return f.purged, nil
}

func saleReceipt() shared.SaleReceipt {
	return shared.SaleReceipt{
		BusinessID:    uuid.New(),
		SaleID:        uuid.New(),
		TicketNumber:  42,
		Total:         decimal.RequireFromString("1500.50"),
		PaymentMethod: "EFECTIVO",
		CreatedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestClientEnqueuesReceipts(t *testing.T) {
	fake := &fakeEnqueuer{}
	client := &Client{client: fake}

	receipt := saleReceipt()
	require.NoError(t, client.SaleCompleted(context.Background(), receipt))
	require.NoError(t, client.ClientPaymentReceived(context.Background(), shared.PaymentReceipt{
		ClientID:  uuid.New(),
		PaymentID: uuid.New(),
		Amount:    decimal.NewFromInt(100),
	}))

	require.Len(t, fake.tasks, 2)
	require.Equal(t, TaskSaleReceipt, fake.tasks[0].Type())
	require.Equal(t, TaskPaymentReceipt, fake.tasks[1].Type())

	var decoded shared.SaleReceipt
	require.NoError(t, json.Unmarshal(fake.tasks[0].Payload(), &decoded))
	require.Equal(t, receipt.SaleID, decoded.SaleID)
	require.True(t, receipt.Total.Equal(decoded.Total))
}

func TestClientTreatsDuplicateTaskAsDelivered(t *testing.T) {
	client := &Client{client: &fakeEnqueuer{err: asynq.ErrTaskIDConflict}}
	require.NoError(t, client.SaleCompleted(context.Background(), saleReceipt()))

	client = &Client{client: &fakeEnqueuer{err: errors.New("redis down")}}
	require.Error(t, client.SaleCompleted(context.Background(), saleReceipt()))
}

func TestReceiptJobDeliversSaleReceipt(t *testing.T) {
	sender := &fakeSender{}
	job := NewReceiptJob(sender, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewSaleReceiptTask(saleReceipt())
	require.NoError(t, err)
	require.NoError(t, job.HandleSaleReceipt(context.Background(), task))
	require.Len(t, sender.sales, 1)
	require.Equal(t, int64(42), sender.sales[0].TicketNumber)
}

func TestReceiptJobSkipsMalformedPayload(t *testing.T) {
	job := NewReceiptJob(&fakeSender{}, nil, nil)
	err := job.HandlePaymentReceipt(context.Background(), asynq.NewTask(TaskPaymentReceipt, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestReceiptJobReturnsSenderError(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp unavailable")}
	job := NewReceiptJob(sender, nil, nil)

	task, err := NewPaymentReceiptTask(shared.PaymentReceipt{PaymentID: uuid.New()})
	require.NoError(t, err)
	require.Error(t, job.HandlePaymentReceipt(context.Background(), task))
}

func TestLogSenderNeverFails(t *testing.T) {
	sender := LogSender{}
	require.NoError(t, sender.SendSaleReceipt(context.Background(), saleReceipt()))
	require.NoError(t, sender.SendPaymentReceipt(context.Background(), shared.PaymentReceipt{}))
}

func TestIdempotencyCleanupUsesRetention(t *testing.T) {
	purger := &fakePurger{purged: 7}
	job := NewIdempotencyCleanupJob(purger, 0, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewIdempotencyCleanupTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, DefaultIdempotencyRetention, purger.retention)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())
}
