package orders

import (
	"context"
	"fmt"
	"time"

	"go-pedidos/internal/gateway"
)

const (
	TablePurchase = "purchase"
	FnSalesByHour = "get_sales_by_hour"
)

type Repository struct {
	gw gateway.Gateway
}

func NewRepository(gw gateway.Gateway) *Repository {
	return &Repository{gw: gw}
}

// List returns every order, newest first.
func (r *Repository) List(ctx context.Context) ([]Order, error) {
	rows, err := r.gw.Query(ctx, TablePurchase, nil, &gateway.Order{Column: "id"})
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(rows))
	for _, row := range rows {
		var o Order
		if err := row.Decode(&o); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		out = append(out, o)
	}
	return out, nil
}

// Update writes the editable fields of o.
func (r *Repository) Update(ctx context.Context, o Order) (Order, error) {
	rows, err := r.gw.Mutate(ctx, TablePurchase, gateway.Update, map[string]any{
		"description":  o.Description,
		"value":        o.Amount,
		"pay":          o.Paid,
		"payment_stat": o.PaymentStatus,
	}, []gateway.Filter{gateway.Equal("id", o.ID)})
	if err != nil {
		return Order{}, err
	}
	if len(rows) == 0 {
		return Order{}, ErrOrderNotFound
	}
	var saved Order
	if err := rows[0].Decode(&saved); err != nil {
		return Order{}, fmt.Errorf("decode order: %w", err)
	}
	return saved, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	rows, err := r.gw.Mutate(ctx, TablePurchase, gateway.Delete, nil, []gateway.Filter{gateway.Equal("id", id)})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func paidWithin(from, to time.Time) []gateway.Filter {
	return []gateway.Filter{
		gateway.Equal("pay", true),
		{Column: "created_at", Op: gateway.Gte, Value: from},
		{Column: "created_at", Op: gateway.Lt, Value: to},
	}
}

// CountPaid counts paid orders created in [from, to).
func (r *Repository) CountPaid(ctx context.Context, from, to time.Time) (int, error) {
	n, err := r.gw.Aggregate(ctx, TablePurchase, paidWithin(from, to), gateway.Aggregation{Mode: gateway.Count})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SumPaid sums the value of paid orders created in [from, to).
func (r *Repository) SumPaid(ctx context.Context, from, to time.Time) (float64, error) {
	return r.gw.Aggregate(ctx, TablePurchase, paidWithin(from, to), gateway.Aggregation{Mode: gateway.Sum, Column: "value"})
}

type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// SalesByHour returns paid sales created in [from, to) per hour of day,
// ascending. Hours are read in from's zone.
func (r *Repository) SalesByHour(ctx context.Context, from, to time.Time) ([]HourCount, error) {
	rows, err := r.gw.Call(ctx, FnSalesByHour, salesByHourArgs(from, to))
	if err != nil {
		return nil, err
	}
	out := make([]HourCount, 0, len(rows))
	for _, row := range rows {
		var hr struct {
			Hour  int `json:"hour_of_day"`
			Count int `json:"sales_count"`
		}
		if err := row.Decode(&hr); err != nil {
			return nil, fmt.Errorf("decode sales hour: %w", err)
		}
		out = append(out, HourCount{Hour: hr.Hour, Count: hr.Count})
	}
	return out, nil
}

func salesByHourArgs(from, to time.Time) map[string]any {
	_, offset := from.Zone()
	return map[string]any{
		"from_ts":            from,
		"to_ts":              to,
		"utc_offset_minutes": offset / 60,
	}
}
