package orders

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"go-pedidos/internal/notify"
	"go-pedidos/internal/storage"
)

type fakeStore struct {
	orders  []Order
	updated []Order
	deleted []int64
	err     error
}

func (f *fakeStore) List(context.Context) ([]Order, error) {
	return f.orders, f.err
}

func (f *fakeStore) Update(_ context.Context, o Order) (Order, error) {
	if f.err != nil {
		return Order{}, f.err
	}
	for _, existing := range f.orders {
		if existing.ID == o.ID {
			f.updated = append(f.updated, o)
			return o, nil
		}
	}
	return Order{}, ErrOrderNotFound
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeUploader struct {
	key  string
	data []byte
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, key string, data []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.key, f.data = key, data
	return "https://bucket/" + key, nil
}

type notes []notify.Notification

func (n *notes) Notify(x notify.Notification) { *n = append(*n, x) }

func sampleOrders() []Order {
	return []Order{
		{ID: 2, Description: "Pizza grande", Amount: 59.9, Paid: true, PaymentStatus: "Pago", Phone: "5511999990000", CreatedAt: time.Date(2025, 3, 14, 12, 30, 0, 0, time.UTC)},
		{ID: 1, Description: "Refrigerante", Amount: 8, Phone: "5511999990001", CreatedAt: time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC)},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		order  Order
		fields []string
	}{
		{"valid", Order{Description: "x", Amount: 1, PaymentStatus: "Pago"}, nil},
		{"blank description", Order{Description: "  ", Amount: 1, PaymentStatus: "Pago"}, []string{"description"}},
		{"zero value", Order{Description: "x", PaymentStatus: "Pago"}, []string{"value"}},
		{"everything missing", Order{Amount: -3}, []string{"description", "value", "payment_stat"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Validate()
			if tt.fields == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidOrder) {
				t.Fatalf("err = %v, want ErrInvalidOrder", err)
			}
			var fe FieldErrors
			if !errors.As(err, &fe) || len(fe) != len(tt.fields) {
				t.Fatalf("field errors = %v, want %v", fe, tt.fields)
			}
			for _, f := range tt.fields {
				if _, ok := fe[f]; !ok {
					t.Errorf("missing error for %s", f)
				}
			}
		})
	}
}

func TestSaveNotifies(t *testing.T) {
	st := &fakeStore{orders: sampleOrders()}
	var n notes
	svc := NewService(st, nil, &n)

	o := sampleOrders()[1]
	o.Paid = true
	o.PaymentStatus = "Pago"
	if _, err := svc.Save(context.Background(), o); err != nil {
		t.Fatal(err)
	}
	if len(st.updated) != 1 || !st.updated[0].Paid {
		t.Fatalf("updated = %+v", st.updated)
	}
	if len(n) != 1 || n[0].Severity != notify.SeveritySuccess {
		t.Fatalf("notifications = %+v", n)
	}
}

func TestSaveRejectsInvalidWithoutWriting(t *testing.T) {
	st := &fakeStore{orders: sampleOrders()}
	var n notes
	svc := NewService(st, nil, &n)

	if _, err := svc.Save(context.Background(), Order{ID: 1}); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("err = %v", err)
	}
	if len(st.updated) != 0 || len(n) != 0 {
		t.Fatalf("invalid order reached the store or notified: %v %v", st.updated, n)
	}
}

func TestDeleteFailureNotifies(t *testing.T) {
	st := &fakeStore{err: errors.New("permission denied")}
	var n notes
	svc := NewService(st, nil, &n)

	if err := svc.Delete(context.Background(), 7); err == nil {
		t.Fatal("expected error")
	}
	if len(n) != 1 || n[0].Severity != notify.SeverityError || !strings.Contains(n[0].Message, "permission denied") {
		t.Fatalf("notifications = %+v", n)
	}
}

func TestExportUploadsWorkbook(t *testing.T) {
	st := &fakeStore{orders: sampleOrders()}
	up := &fakeUploader{}
	svc := NewService(st, up, &notes{})
	svc.now = func() time.Time { return time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC) }

	url, err := svc.Export(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(up.key, "exports/pedidos_20250314_180000_") || url != "https://bucket/"+up.key {
		t.Fatalf("key = %q url = %q", up.key, url)
	}

	f, err := excelize.OpenReader(bytes.NewReader(up.data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[1][1] != "Pizza grande" || rows[1][3] != "Sim" {
		t.Errorf("first order row = %v", rows[1])
	}
	if rows[2][4] != DefaultPaymentStatus {
		t.Errorf("status without value = %q", rows[2][4])
	}
}

func TestExportWithoutStorage(t *testing.T) {
	var n notes
	svc := NewService(&fakeStore{orders: sampleOrders()}, storage.Disabled{}, &n)
	if _, err := svc.Export(context.Background()); !errors.Is(err, storage.ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if len(n) != 1 || n[0].Severity != notify.SeverityError {
		t.Fatalf("notifications = %+v", n)
	}
}
