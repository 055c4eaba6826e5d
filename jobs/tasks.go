package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSaleReceipt delivers the receipt of a committed sale.
	TaskSaleReceipt = "pos:sale_receipt"
	// TaskPaymentReceipt delivers the receipt of a client account payment.
	TaskPaymentReceipt = "pos:payment_receipt"
)

// NewSaleReceiptTask constructs an Asynq task for a sale receipt.
func NewSaleReceiptTask(receipt shared.SaleReceipt) (*asynq.Task, error) {
	data, err := json.Marshal(receipt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSaleReceipt, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// NewPaymentReceiptTask constructs an Asynq task for a payment receipt.
func NewPaymentReceiptTask(receipt shared.PaymentReceipt) (*asynq.Task, error) {
	data, err := json.Marshal(receipt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentReceipt, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// ReceiptSender renders and delivers receipts, e.g. by email.
type ReceiptSender interface {
	SendSaleReceipt(ctx context.Context, receipt shared.SaleReceipt) error
	SendPaymentReceipt(ctx context.Context, receipt shared.PaymentReceipt) error
}

// LogSender writes receipts to the log. Used until a mail provider is wired.
type LogSender struct {
	Logger *slog.Logger
}

// SendSaleReceipt implements ReceiptSender.
func (s LogSender) SendSaleReceipt(_ context.Context, r shared.SaleReceipt) error {
	s.logger().Info("sale receipt",
		slog.String("sale_id", r.SaleID.String()),
		slog.Int64("ticket_number", r.TicketNumber),
		slog.String("total", shared.FormatMoney(r.Total)),
		slog.String("payment_method", r.PaymentMethod))
	return nil
}

// SendPaymentReceipt implements ReceiptSender.
func (s LogSender) SendPaymentReceipt(_ context.Context, r shared.PaymentReceipt) error {
	s.logger().Info("payment receipt",
		slog.String("client_id", r.ClientID.String()),
		slog.String("payment_id", r.PaymentID.String()),
		slog.String("amount", shared.FormatMoney(r.Amount)),
		slog.String("remaining_debt", shared.FormatMoney(r.RemainingDebt)))
	return nil
}

func (s LogSender) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// ReceiptJob handles receipt tasks.
type ReceiptJob struct {
	Sender  ReceiptSender
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReceiptJob wires dependencies for the receipt handlers.
func NewReceiptJob(sender ReceiptSender, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReceiptJob {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	return &ReceiptJob{Sender: sender, Logger: logger, Metrics: metrics}
}

// HandleSaleReceipt processes TaskSaleReceipt tasks.
func (j *ReceiptJob) HandleSaleReceipt(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sender == nil {
		return errors.New("sale receipt: handler not configured")
	}
	var receipt shared.SaleReceipt
	if err := json.Unmarshal(t.Payload(), &receipt); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskSaleReceipt)
	err := j.Sender.SendSaleReceipt(ctx, receipt)
	if err == nil {
		j.Metrics.AddReceipt("sale")
	} else {
		j.Logger.Warn("sale receipt failed", slog.String("sale_id", receipt.SaleID.String()), slog.Any("error", err))
	}
	return tracker.End(err)
}

// HandlePaymentReceipt processes TaskPaymentReceipt tasks.
func (j *ReceiptJob) HandlePaymentReceipt(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sender == nil {
		return errors.New("payment receipt: handler not configured")
	}
	var receipt shared.PaymentReceipt
	if err := json.Unmarshal(t.Payload(), &receipt); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskPaymentReceipt)
	err := j.Sender.SendPaymentReceipt(ctx, receipt)
	if err == nil {
		j.Metrics.AddReceipt("payment")
	} else {
		j.Logger.Warn("payment receipt failed", slog.String("payment_id", receipt.PaymentID.String()), slog.Any("error", err))
	}
	return tracker.End(err)
}
