package sales

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/cash"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// plan is a validated sale ready to execute.
type plan struct {
	items    []Item
	payments []Payment
	subtotal decimal.Decimal
	discount decimal.Decimal
	total    decimal.Decimal
}

// buildPlan checks every precondition that does not need stored state.
func buildPlan(in CreateInput, tolerance decimal.Decimal) (plan, error) {
	var details []shared.FieldError
	if len(in.Items) == 0 {
		details = append(details, shared.FieldError{Field: "items", Message: "debe incluir al menos un producto"})
	}
	if !in.PaymentMethod.Valid() {
		details = append(details, shared.FieldError{Field: "paymentMethod", Message: "medio de pago inválido"})
	}
	if in.PaymentMethod == cash.PaymentCuentaCorriente && (in.ClientID == nil || *in.ClientID == uuid.Nil) {
		details = append(details, shared.FieldError{Field: "clientId", Message: "obligatorio para cuenta corriente"})
	}
	if in.Discount.IsNegative() {
		details = append(details, shared.FieldError{Field: "discount", Message: "no puede ser negativo"})
	}
	if in.Total.IsNegative() {
		details = append(details, shared.FieldError{Field: "total", Message: "no puede ser negativo"})
	}

	p := plan{subtotal: decimal.Zero, discount: shared.RoundMoney(in.Discount), total: shared.RoundMoney(in.Total)}
	for i, it := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if it.ProductID == uuid.Nil {
			details = append(details, shared.FieldError{Field: field + ".productId", Message: "campo obligatorio"})
		}
		if it.Quantity <= 0 {
			details = append(details, shared.FieldError{Field: field + ".quantity", Message: "debe ser mayor a 0"})
		}
		if !it.UnitPrice.IsPositive() {
			details = append(details, shared.FieldError{Field: field + ".unitPrice", Message: "debe ser mayor a 0"})
		}
		line := shared.RoundMoney(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		p.items = append(p.items, Item{
			ID:        uuid.New(),
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: shared.RoundMoney(it.UnitPrice),
			Subtotal:  line,
		})
		p.subtotal = p.subtotal.Add(line)
	}
	if len(details) > 0 {
		return plan{}, shared.Validation("datos de la venta inválidos", details...)
	}

	if p.discount.GreaterThan(p.subtotal) {
		return plan{}, shared.Validation("el descuento supera el subtotal", shared.FieldError{Field: "discount", Message: "máximo " + shared.FormatMoney(p.subtotal)})
	}
	computed := p.subtotal.Sub(p.discount)
	if !shared.WithinTolerance(computed, p.total, tolerance) {
		return plan{}, shared.Validation("el total no coincide con la suma de los productos",
			shared.FieldError{Field: "total", Message: "total calculado: " + shared.FormatMoney(computed)})
	}

	payments, err := planPayments(in, p.total, tolerance)
	if err != nil {
		return plan{}, err
	}
	p.payments = payments
	return p, nil
}

func planPayments(in CreateInput, total decimal.Decimal, tolerance decimal.Decimal) ([]Payment, error) {
	if in.PaymentMethod != cash.PaymentMixto {
		if len(in.Payments) > 0 {
			return nil, shared.Validation("el desglose de pagos solo aplica a ventas MIXTO", shared.FieldError{Field: "payments", Message: "no permitido"})
		}
		if in.PaymentMethod == cash.PaymentCuentaCorriente || !total.IsPositive() {
			return nil, nil
		}
		return []Payment{{ID: uuid.New(), Method: in.PaymentMethod, Amount: total}}, nil
	}

	if len(in.Payments) < 2 {
		return nil, shared.Validation("una venta MIXTO requiere al menos dos medios de pago", shared.FieldError{Field: "payments", Message: "mínimo 2"})
	}
	var details []shared.FieldError
	sum := decimal.Zero
	parts := make([]Payment, 0, len(in.Payments))
	for i, part := range in.Payments {
		field := fmt.Sprintf("payments[%d]", i)
		if !part.Method.Settles() {
			details = append(details, shared.FieldError{Field: field + ".method", Message: "medio de pago inválido en un pago dividido"})
		}
		if !part.Amount.IsPositive() {
			details = append(details, shared.FieldError{Field: field + ".amount", Message: "debe ser mayor a 0"})
		}
		amount := shared.RoundMoney(part.Amount)
		sum = sum.Add(amount)
		parts = append(parts, Payment{ID: uuid.New(), Method: part.Method, Amount: amount})
	}
	if len(details) > 0 {
		return nil, shared.Validation("desglose de pagos inválido", details...)
	}
	if !shared.WithinTolerance(sum, total, tolerance) {
		return nil, shared.Validation("la suma de los pagos no coincide con el total",
			shared.FieldError{Field: "payments", Message: "suma: " + shared.FormatMoney(sum) + ", total: " + shared.FormatMoney(total)})
	}
	return parts, nil
}

// ValidateReason enforces a minimum length for cancellation and refund reasons.
func ValidateReason(reason string, minLength int) (string, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < minLength {
		return "", shared.Validation("el motivo es demasiado corto",
			shared.FieldError{Field: "reason", Message: fmt.Sprintf("debe tener al menos %d caracteres", minLength)})
	}
	return reason, nil
}

// LockOrder returns the items sorted by product then variant so concurrent
// transactions acquire product rows in the same order.
func LockOrder[T any](items []T, key func(T) string) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}

func itemLockKey(it Item) string {
	if it.VariantID != nil {
		return it.ProductID.String() + ":" + it.VariantID.String()
	}
	return it.ProductID.String()
}
