package shared

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleReceipt is the payload sent after a sale commits.
type SaleReceipt struct {
	BusinessID    uuid.UUID       `json:"business_id"`
	SaleID        uuid.UUID       `json:"sale_id"`
	TicketNumber  int64           `json:"ticket_number"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	ClientID      *uuid.UUID      `json:"client_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// PaymentReceipt is the payload sent after a client payment commits.
type PaymentReceipt struct {
	BusinessID    uuid.UUID       `json:"business_id"`
	ClientID      uuid.UUID       `json:"client_id"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount"`
	RemainingDebt decimal.Decimal `json:"remaining_debt"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Notifier delivers receipts out of band.
type Notifier interface {
	SaleCompleted(ctx context.Context, receipt SaleReceipt) error
	ClientPaymentReceived(ctx context.Context, receipt PaymentReceipt) error
}

// NotifyAfterCommit runs send and only logs failures; the caller's result stands.
func NotifyAfterCommit(ctx context.Context, logger *slog.Logger, event string, send func(context.Context) error) {
	if send == nil {
		return
	}
	if err := send(ctx); err != nil && logger != nil {
		logger.Warn("notification failed", slog.String("event", event), slog.Any("error", err))
	}
}
