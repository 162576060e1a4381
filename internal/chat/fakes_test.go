package chat

import (
	"context"
	"sync"
	"time"

	"go-pedidos/internal/gateway"
	"go-pedidos/internal/notify"
)

func str(s string) *string { return &s }

func at(hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return time.Date(2025, 3, 14, t.Hour(), t.Minute(), 0, 0, time.UTC)
}

type fakeSub struct {
	events chan gateway.Event
	once   sync.Once
	closed chan struct{}
}

func newFakeSub() *fakeSub {
	return &fakeSub{events: make(chan gateway.Event, 16), closed: make(chan struct{})}
}

func (f *fakeSub) Events() <-chan gateway.Event { return f.events }

func (f *fakeSub) Close() error {
	f.once.Do(func() {
		close(f.closed)
		close(f.events)
	})
	return nil
}

func (f *fakeSub) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// fakeSource serves canned rows. A fetch for a key listed in gates blocks
// until the gate channel is closed.
type fakeSource struct {
	mu            sync.Mutex
	conversations []Conversation
	listErr       error
	rows          map[string][]ChatRow
	fetchErr      map[string]error
	gates         map[string]chan struct{}
	subs          map[string][]*fakeSub
	fetches       int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		rows:     make(map[string][]ChatRow),
		fetchErr: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		subs:     make(map[string][]*fakeSub),
	}
}

func (f *fakeSource) ListConversations(context.Context) ([]Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Conversation(nil), f.conversations...), nil
}

func (f *fakeSource) FetchRows(ctx context.Context, key string) ([]ChatRow, error) {
	f.mu.Lock()
	gate := f.gates[key]
	f.fetches++
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[key]; err != nil {
		return nil, err
	}
	return append([]ChatRow(nil), f.rows[key]...), nil
}

func (f *fakeSource) Subscribe(_ context.Context, key string) (gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := newFakeSub()
	f.subs[key] = append(f.subs[key], sub)
	return sub, nil
}

func (f *fakeSource) lastSub(key string) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := f.subs[key]
	if len(subs) == 0 {
		return nil
	}
	return subs[len(subs)-1]
}

type recorder struct {
	mu    sync.Mutex
	notes []notify.Notification
}

func (r *recorder) Notify(n notify.Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recorder) errors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Severity == notify.SeverityError {
			n++
		}
	}
	return n
}

func turnIDs(turns []ChatTurn) []string {
	ids := make([]string, len(turns))
	for i, t := range turns {
		ids[i] = t.ID
	}
	return ids
}

// eventually polls cond for up to a second.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
