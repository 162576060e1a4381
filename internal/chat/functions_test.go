package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go-pedidos/internal/gateway"
)

// memGateway keeps control rows and inserted messages in memory.
type memGateway struct {
	control   map[string]bool
	inserted  []map[string]any
	nextID    int64
	insertErr error
}

func (m *memGateway) Query(_ context.Context, table string, filters []gateway.Filter, _ *gateway.Order) ([]gateway.Row, error) {
	if table != TableControl {
		return nil, nil
	}
	key := filters[0].Value.(string)
	active, ok := m.control[key]
	if !ok {
		return nil, nil
	}
	raw, _ := json.Marshal(controlRow{ConversationID: key, Active: active})
	return []gateway.Row{gateway.Row(raw)}, nil
}

func (m *memGateway) Aggregate(context.Context, string, []gateway.Filter, gateway.Aggregation) (float64, error) {
	return 0, nil
}

func (m *memGateway) Call(context.Context, string, map[string]any) ([]gateway.Row, error) {
	return nil, nil
}

func (m *memGateway) Invoke(context.Context, string, any) (gateway.Row, error) {
	return nil, gateway.ErrUnknownFunction
}

func (m *memGateway) Subscribe(context.Context, string, gateway.Filter) (gateway.Subscription, error) {
	return nil, gateway.ErrUnsupportedFilter
}

func (m *memGateway) Mutate(_ context.Context, table string, op gateway.MutationOp, payload map[string]any, filters []gateway.Filter) ([]gateway.Row, error) {
	switch {
	case table == TableControl && op == gateway.Upsert:
		key := filters[0].Value.(string)
		m.control[key] = payload["active"].(bool)
		raw, _ := json.Marshal(controlRow{ConversationID: key, Active: m.control[key]})
		return []gateway.Row{gateway.Row(raw)}, nil
	case table == TableMessages && op == gateway.Insert:
		if m.insertErr != nil {
			return nil, m.insertErr
		}
		m.nextID++
		m.inserted = append(m.inserted, payload)
		row := map[string]any{"id": m.nextID, "created_at": at("12:00")}
		for k, v := range payload {
			row[k] = v
		}
		raw, _ := json.Marshal(row)
		return []gateway.Row{gateway.Row(raw)}, nil
	}
	return nil, errors.New("unexpected mutation")
}

type sentMessage struct{ phone, body string }

type fakeSender struct {
	err  error
	sent []sentMessage
}

func (f *fakeSender) Send(_ context.Context, phone, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{phone, body})
	return nil
}

func invoke(t *testing.T, fns *gateway.Functions, gw gateway.Gateway, name string, payload any) (gateway.Row, error) {
	t.Helper()
	fn, ok := fns.Lookup(name)
	if !ok {
		t.Fatalf("function %q not registered", name)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return fn(context.Background(), gw, raw)
}

func TestSetControlUpserts(t *testing.T) {
	gw := &memGateway{control: map[string]bool{}}
	fns := gateway.NewFunctions()
	RegisterFunctions(fns, &fakeSender{})

	if _, err := invoke(t, fns, gw, FnSetControl, setControlRequest{ConversationID: keyA, Active: false}); err != nil {
		t.Fatal(err)
	}
	if active, ok := gw.control[keyA]; !ok || active {
		t.Fatalf("control row = %v, %v; want inactive", active, ok)
	}
	if _, err := invoke(t, fns, gw, FnSetControl, setControlRequest{Active: true}); !errors.Is(err, ErrUnknownConversation) {
		t.Fatalf("err = %v, want ErrUnknownConversation", err)
	}
}

func TestSendMessageFunction(t *testing.T) {
	tests := []struct {
		name    string
		control map[string]bool
		content string
		sendErr error
		wantErr error
		wantOut bool
	}{
		{name: "human control", control: map[string]bool{keyA: false}, content: " Olá ", wantOut: true},
		{name: "no control row is automated", control: map[string]bool{}, content: "Olá", wantErr: ErrAutomated},
		{name: "automated", control: map[string]bool{keyA: true}, content: "Olá", wantErr: ErrAutomated},
		{name: "blank", control: map[string]bool{keyA: false}, content: "  ", wantErr: ErrEmptyMessage},
		{name: "sender fails", control: map[string]bool{keyA: false}, content: "Olá", sendErr: errors.New("21211")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &memGateway{control: tt.control}
			sender := &fakeSender{err: tt.sendErr}
			fns := gateway.NewFunctions()
			RegisterFunctions(fns, sender)

			row, err := invoke(t, fns, gw, FnSendMessage, sendMessageRequest{ConversationID: keyA, Content: tt.content})
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.sendErr != nil {
				if err == nil || len(gw.inserted) != 0 {
					t.Fatalf("err = %v, inserted = %d; want error and nothing stored", err, len(gw.inserted))
				}
				return
			}
			if !tt.wantOut {
				if len(sender.sent) != 0 || len(gw.inserted) != 0 {
					t.Fatal("rejected message was sent or stored")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(sender.sent) != 1 || sender.sent[0] != (sentMessage{"5511900000001", "Olá"}) {
				t.Fatalf("sent = %+v", sender.sent)
			}
			var cr ChatRow
			if err := row.Decode(&cr); err != nil {
				t.Fatal(err)
			}
			if cr.ConversationKey != keyA || cr.BotMessage == nil || *cr.BotMessage != "Olá" || cr.automated() {
				t.Fatalf("stored row = %+v", cr)
			}
			if turns := rowTurns(cr); turns[0].Direction != OutgoingHuman {
				t.Fatalf("direction = %q", turns[0].Direction)
			}
		})
	}
}

func TestSendMessageDeliveredButNotStored(t *testing.T) {
	gw := &memGateway{control: map[string]bool{keyA: false}, insertErr: errors.New("connection reset")}
	sender := &fakeSender{}
	fns := gateway.NewFunctions()
	RegisterFunctions(fns, sender)

	_, err := invoke(t, fns, gw, FnSendMessage, sendMessageRequest{ConversationID: keyA, Content: "Olá"})
	if !errors.Is(err, ErrNotRecorded) {
		t.Fatalf("err = %v, want ErrNotRecorded", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sender.sent))
	}
}
