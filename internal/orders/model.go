package orders

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const DefaultPaymentStatus = "Em Analise"

// Order is one row of the purchase table.
type Order struct {
	ID            int64     `json:"id"`
	Description   string    `json:"description"`
	Amount        float64   `json:"value"`
	Paid          bool      `json:"pay"`
	PaymentStatus string    `json:"payment_stat"`
	Phone         string    `json:"phone"`
	CreatedAt     time.Time `json:"created_at"`
}

var (
	ErrInvalidOrder  = errors.New("invalid order")
	ErrOrderNotFound = errors.New("order not found")
)

// FieldErrors maps a form field to its message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, f := range []string{"description", "value", "payment_stat"} {
		if msg, ok := e[f]; ok {
			parts = append(parts, msg)
		}
	}
	return fmt.Sprintf("%s: %s", ErrInvalidOrder, strings.Join(parts, "; "))
}

func (e FieldErrors) Unwrap() error { return ErrInvalidOrder }

// Validate applies the edit form rules.
func (o Order) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(o.Description) == "" {
		errs["description"] = "Descrição é obrigatória"
	}
	if o.Amount <= 0 {
		errs["value"] = "Valor deve ser maior que zero"
	}
	if strings.TrimSpace(o.PaymentStatus) == "" {
		errs["payment_stat"] = "Status é obrigatório"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// StatusOrDefault is the status shown for orders that never got one.
func (o Order) StatusOrDefault() string {
	if o.PaymentStatus == "" {
		return DefaultPaymentStatus
	}
	return o.PaymentStatus
}
