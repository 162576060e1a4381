package console

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go-pedidos/internal/chat"
	"go-pedidos/internal/gateway"
	"go-pedidos/internal/orders"
)

const key = "5511988887777@s.whatsapp.net"

type nopSub struct {
	events chan gateway.Event
	once   sync.Once
}

func (s *nopSub) Events() <-chan gateway.Event { return s.events }
func (s *nopSub) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

type fakeChat struct {
	mu      sync.Mutex
	control chat.ControlState
	sent    []string
}

func (f *fakeChat) ListConversations(context.Context) ([]chat.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return []chat.Conversation{{Key: key, ControlState: f.control, LastMessageSnippet: "Quero uma pizza"}}, nil
}

func (f *fakeChat) FetchRows(context.Context, string) ([]chat.ChatRow, error) {
	msg := "Quero uma pizza"
	return []chat.ChatRow{{ID: 1, ConversationKey: key, UserMessage: &msg, CreatedAt: time.Now()}}, nil
}

func (f *fakeChat) Subscribe(context.Context, string) (gateway.Subscription, error) {
	return &nopSub{events: make(chan gateway.Event)}, nil
}

func (f *fakeChat) SetControl(_ context.Context, _ string, target chat.ControlState) error {
	f.mu.Lock()
	f.control = target
	f.mu.Unlock()
	return nil
}

func (f *fakeChat) SendMessage(_ context.Context, k, text string) (chat.ChatRow, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	off := false
	return chat.ChatRow{ID: 2, ConversationKey: k, BotMessage: &text, CreatedAt: time.Now(), Active: &off}, nil
}

type fakeDash struct{ err error }

func (f fakeDash) List(context.Context) ([]orders.Order, error) { return nil, nil }
func (f fakeDash) CountPaid(context.Context, time.Time, time.Time) (int, error) {
	return 4, f.err
}
func (f fakeDash) SumPaid(context.Context, time.Time, time.Time) (float64, error) { return 80, nil }
func (f fakeDash) SalesByHour(context.Context, time.Time, time.Time) ([]orders.HourCount, error) {
	return nil, nil
}

type frames struct {
	mu  sync.Mutex
	out []Outbound
}

func (f *frames) push(o Outbound) {
	f.mu.Lock()
	f.out = append(f.out, o)
	f.mu.Unlock()
}

func (f *frames) last(typ string) (Outbound, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.out) - 1; i >= 0; i-- {
		if f.out[i].Type == typ {
			return f.out[i], true
		}
	}
	return Outbound{}, false
}

func newTestSession(fc *fakeChat, fd fakeDash) (*session, *frames) {
	fr := &frames{}
	s := newSession(Deps{Chat: fc, Actions: fc, Dashboard: fd}, fr.push)
	return s, fr
}

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{`{"type":"select","conversation_id":"k"}`, false},
		{`{"type":"select"}`, false},
		{`{"type":"send","conversation_id":"k","content":"oi"}`, false},
		{`{"type":"send","content":"oi"}`, true},
		{`{"type":"toggle_control"}`, true},
		{`{"type":"refresh_dashboard"}`, false},
		{`{"type":"reconcile"}`, true},
		{`{"type":"drop_tables"}`, true},
		{`not json`, true},
	}
	for _, tt := range tests {
		_, err := decodeInbound([]byte(tt.raw))
		if (err != nil) != tt.wantErr {
			t.Errorf("decodeInbound(%s) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
	}
}

func TestSessionSelectPushesSession(t *testing.T) {
	s, fr := newTestSession(&fakeChat{control: chat.Automated}, fakeDash{})
	defer s.close()
	ctx := context.Background()

	if err := s.handle(ctx, Inbound{Type: TypeRefreshConversations}); err != nil {
		t.Fatal(err)
	}
	conv, ok := fr.last(TypeConversations)
	if !ok {
		t.Fatal("no conversations frame")
	}
	views := conv.Data.([]conversationView)
	if len(views) != 1 || views[0].DisplayName != "5511988887777" {
		t.Fatalf("conversations = %+v", views)
	}

	if err := s.handle(ctx, Inbound{Type: TypeSelect, ConversationID: key}); err != nil {
		t.Fatal(err)
	}
	out, ok := fr.last(TypeSession)
	if !ok {
		t.Fatal("no session frame")
	}
	v := out.Data.(sessionView)
	if v.State != chat.Ready || len(v.Turns) != 1 || !v.Turns[0].Separator || v.CanSend {
		t.Fatalf("session = %+v", v)
	}
}

func TestSessionSendRequiresHumanControl(t *testing.T) {
	fc := &fakeChat{control: chat.Automated}
	s, fr := newTestSession(fc, fakeDash{})
	defer s.close()
	ctx := context.Background()
	s.handle(ctx, Inbound{Type: TypeRefreshConversations})
	s.handle(ctx, Inbound{Type: TypeSelect, ConversationID: key})

	err := s.handle(ctx, Inbound{Type: TypeSend, ConversationID: key, Content: "oi"})
	if !errors.Is(err, chat.ErrAutomated) {
		t.Fatalf("err = %v, want ErrAutomated", err)
	}
	if _, ok := fr.last(TypeNotification); !ok {
		t.Fatal("rejection not reported")
	}

	if err := s.handle(ctx, Inbound{Type: TypeToggleControl, ConversationID: key}); err != nil {
		t.Fatal(err)
	}
	if err := s.handle(ctx, Inbound{Type: TypeSend, ConversationID: key, Content: "Saindo agora"}); err != nil {
		t.Fatal(err)
	}
	out, _ := fr.last(TypeSession)
	v := out.Data.(sessionView)
	if !v.CanSend || len(v.Turns) != 2 || v.Turns[1].Direction != chat.OutgoingHuman || v.Turns[1].Pending {
		t.Fatalf("session after send = %+v", v)
	}
	if len(fc.sent) != 1 || fc.sent[0] != "Saindo agora" {
		t.Fatalf("sent = %v", fc.sent)
	}
}

func TestSessionDashboardFrame(t *testing.T) {
	s, fr := newTestSession(&fakeChat{}, fakeDash{err: errors.New("count failed")})
	defer s.close()

	if err := s.handle(context.Background(), Inbound{Type: TypeRefreshDashboard}); err == nil {
		t.Fatal("expected error")
	}
	out, ok := fr.last(TypeDashboard)
	if !ok {
		t.Fatal("no dashboard frame")
	}
	raw, _ := json.Marshal(out)
	var decoded struct {
		Data struct {
			Error    string          `json:"error"`
			Snapshot json.RawMessage `json:"snapshot"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Data.Error == "" || string(decoded.Data.Snapshot) != "null" {
		t.Fatalf("dashboard frame = %s", raw)
	}
}

func TestHubReconcileAndUnregister(t *testing.T) {
	hub := NewHub(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := newClient(hub, nil, Deps{Chat: &fakeChat{}, Actions: &fakeChat{}, Dashboard: fakeDash{}})
	if !hub.add(c) {
		t.Fatal("running hub refused client")
	}

	select {
	case cmd := <-c.cmds:
		if cmd.Type != typeReconcile {
			t.Fatalf("queued %q, want reconcile", cmd.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no reconcile queued")
	}
	if hub.Connected() != 1 {
		t.Fatalf("connected = %d", hub.Connected())
	}

	hub.remove(c)
	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("send channel still open")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	c.push(Outbound{Type: TypeNotification})
}

func TestStoppedHubDoesNotBlock(t *testing.T) {
	hub := NewHub(0)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := newClient(hub, nil, Deps{Chat: &fakeChat{}, Actions: &fakeChat{}, Dashboard: fakeDash{}})
	if !hub.add(c) {
		t.Fatal("running hub refused client")
	}
	cancel()
	<-stopped

	returned := make(chan bool, 1)
	go func() {
		hub.remove(c)
		late := newClient(hub, nil, Deps{Chat: &fakeChat{}, Actions: &fakeChat{}, Dashboard: fakeDash{}})
		returned <- hub.add(late)
	}()
	select {
	case ok := <-returned:
		if ok {
			t.Fatal("stopped hub accepted a client")
		}
	case <-time.After(time.Second):
		t.Fatal("register or unregister blocked on a stopped hub")
	}
	if hub.Connected() != 0 {
		t.Fatalf("connected = %d after stop", hub.Connected())
	}
}
