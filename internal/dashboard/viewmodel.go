package dashboard

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go-pedidos/internal/notify"
	"go-pedidos/internal/orders"
)

// Source runs the four dashboard queries. orders.Repository implements it.
type Source interface {
	List(ctx context.Context) ([]orders.Order, error)
	CountPaid(ctx context.Context, from, to time.Time) (int, error)
	SumPaid(ctx context.Context, from, to time.Time) (float64, error)
	SalesByHour(ctx context.Context, from, to time.Time) ([]orders.HourCount, error)
}

type KpiSnapshot struct {
	Orders       []orders.Order     `json:"orders"`
	OrderCount   int                `json:"order_count"`
	TotalRevenue float64            `json:"total_revenue"`
	Hourly       []orders.HourCount `json:"hourly"`
	TotalSales   int                `json:"total_sales"`
	PeakHour     *int               `json:"peak_hour"`
	RefreshedAt  time.Time          `json:"refreshed_at"`
}

// State is what a renderer shows: the last committed snapshot (nil before the
// first success), whether a refresh is running and the last refresh error.
type State struct {
	Loading  bool         `json:"loading"`
	Error    string       `json:"error,omitempty"`
	Snapshot *KpiSnapshot `json:"snapshot"`
}

type ViewModel struct {
	src      Source
	notifier notify.Notifier
	now      func() time.Time

	mu       sync.Mutex
	snap     *KpiSnapshot
	err      error
	inflight int
	started  uint64 // sequence of the last refresh begun
	applied  uint64 // sequence of the refresh whose outcome is shown
}

func NewViewModel(src Source, notifier notify.Notifier) *ViewModel {
	if notifier == nil {
		notifier = notify.Log{}
	}
	return &ViewModel{src: src, notifier: notifier, now: time.Now}
}

// Today is [local midnight, next local midnight) for t.
func Today(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// Refresh runs every query concurrently and commits all results together.
// If any query fails the previous snapshot stays in place. When refreshes
// overlap, an outcome older than the one already shown is discarded.
func (v *ViewModel) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.started++
	seq := v.started
	v.inflight++
	v.mu.Unlock()

	now := v.now()
	from, to := Today(now)

	var next KpiSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := v.src.List(gctx)
		next.Orders = list
		return err
	})
	g.Go(func() error {
		n, err := v.src.CountPaid(gctx, from, to)
		next.OrderCount = n
		return err
	})
	g.Go(func() error {
		sum, err := v.src.SumPaid(gctx, from, to)
		next.TotalRevenue = sum
		return err
	})
	g.Go(func() error {
		hours, err := v.src.SalesByHour(gctx, from, to)
		next.Hourly = hours
		return err
	})
	err := g.Wait()

	v.mu.Lock()
	v.inflight--
	if seq > v.applied {
		v.applied = seq
		v.err = err
		if err == nil {
			next.TotalSales, next.PeakHour = summarize(next.Hourly)
			next.RefreshedAt = now
			v.snap = &next
		}
	}
	v.mu.Unlock()

	if err != nil {
		v.notifier.Notify(notify.Errorf("Não foi possível buscar os dados do dashboard."))
	}
	return err
}

// summarize totals the histogram and finds the busiest hour; the earliest
// hour wins a tie.
func summarize(hours []orders.HourCount) (int, *int) {
	total := 0
	var peak *orders.HourCount
	for i := range hours {
		total += hours[i].Count
		if peak == nil || hours[i].Count > peak.Count {
			peak = &hours[i]
		}
	}
	if peak == nil {
		return total, nil
	}
	h := peak.Hour
	return total, &h
}

func (v *ViewModel) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := State{Loading: v.inflight > 0, Snapshot: v.snap}
	if v.err != nil {
		st.Error = v.err.Error()
	}
	return st
}
