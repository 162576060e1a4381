package chat

import (
	"context"
	"errors"
	"log"
	"sync"

	"go-pedidos/internal/gateway"
	"go-pedidos/internal/notify"
)

type SessionState string

const (
	NoSelection SessionState = "no-selection"
	Loading     SessionState = "loading"
	Ready       SessionState = "ready"
	Failed      SessionState = "error"
)

type ChangeKind int

const (
	ChangeConversations ChangeKind = iota
	ChangeSession
)

// Snapshot is a copy of the store state safe to hand to renderers.
type Snapshot struct {
	Conversations []Conversation `json:"conversations"`
	Selected      string         `json:"conversation_id"`
	State         SessionState   `json:"state"`
	Turns         []ChatTurn     `json:"turns"`
	Error         string         `json:"error,omitempty"`
}

// Store holds the conversation list and the selected conversation's session.
// It owns at most one realtime subscription at a time. Remote calls are made
// without holding the lock; results from a superseded selection are dropped
// by comparing generations.
type Store struct {
	src      Source
	notifier notify.Notifier

	mu            sync.Mutex
	conversations []Conversation
	overrides     map[string]ControlState // in-flight control changes
	selected      string
	state         SessionState
	turns         []ChatTurn
	seen          map[string]struct{}
	err           error
	resyncPending bool // reconnect seen while the first fetch was running
	gen           uint64
	sub           gateway.Subscription
	listener      func(ChangeKind)
	closed        bool
}

func NewStore(src Source, notifier notify.Notifier) *Store {
	if notifier == nil {
		notifier = notify.Log{}
	}
	return &Store{
		src:       src,
		notifier:  notifier,
		overrides: make(map[string]ControlState),
		state:     NoSelection,
		seen:      make(map[string]struct{}),
	}
}

// SetListener registers fn to be called after every change. fn runs without
// the store lock held and may call Snapshot.
func (s *Store) SetListener(fn func(ChangeKind)) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

func (s *Store) emit(kind ChangeKind) {
	s.mu.Lock()
	fn := s.listener
	s.mu.Unlock()
	if fn != nil {
		fn(kind)
	}
}

// LoadConversationList replaces the list wholesale. On failure the previous
// list is kept.
func (s *Store) LoadConversationList(ctx context.Context) error {
	list, err := s.src.ListConversations(ctx)
	if err != nil {
		s.notifier.Notify(notify.Errorf("Erro ao carregar conversas: %v", err))
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	for i := range list {
		if target, ok := s.overrides[list[i].Key]; ok {
			list[i].ControlState = target
		}
	}
	s.conversations = list
	s.mu.Unlock()

	s.emit(ChangeConversations)
	return nil
}

// Conversation returns the list entry for key.
func (s *Store) Conversation(key string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(key)
	if i < 0 {
		return Conversation{}, false
	}
	return s.conversations[i], true
}

func (s *Store) indexLocked(key string) int {
	for i, c := range s.conversations {
		if c.Key == key {
			return i
		}
	}
	return -1
}

// SelectConversation switches the session to key. The previous subscription
// is released first. An empty key clears the selection.
func (s *Store) SelectConversation(ctx context.Context, key string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	old := s.sub
	s.sub = nil
	s.selected = key
	s.turns = nil
	s.seen = make(map[string]struct{})
	s.err = nil
	s.resyncPending = false
	if key == "" {
		s.state = NoSelection
	} else {
		s.state = Loading
	}
	s.mu.Unlock()

	release(old)
	s.emit(ChangeSession)
	if key == "" {
		return nil
	}

	// Subscribe before fetching so nothing inserted in between is lost.
	sub, err := s.src.Subscribe(ctx, key)
	if err != nil {
		return s.fail(gen, nil, err)
	}
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		release(sub)
		return nil
	}
	s.sub = sub
	s.mu.Unlock()
	go s.pump(gen, sub)

	rows, err := s.src.FetchRows(ctx, key)
	if err != nil {
		return s.fail(gen, sub, err)
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	s.mergeLocked(Linearize(rows))
	s.state = Ready
	again := s.resyncPending
	s.resyncPending = false
	s.mu.Unlock()

	s.emit(ChangeSession)
	if again {
		if err := s.resync(ctx, gen); err != nil {
			log.Printf("⚠️ resync after reconnect: %v", err)
		}
	}
	return nil
}

// fail moves a still-current session into the error state and closes its
// subscription.
func (s *Store) fail(gen uint64, sub gateway.Subscription, err error) error {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	if s.sub == sub {
		s.sub = nil
	}
	s.state = Failed
	s.err = err
	s.mu.Unlock()

	release(sub)
	// A canceled load was superseded by the caller; nothing to report.
	if !errors.Is(err, context.Canceled) {
		s.notifier.Notify(notify.Errorf("Erro ao carregar mensagens: %v", err))
	}
	s.emit(ChangeSession)
	return err
}

func release(sub gateway.Subscription) {
	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		log.Printf("⚠️ closing subscription: %v", err)
	}
}

// pump feeds realtime events of one selection into the store until the
// subscription closes.
func (s *Store) pump(gen uint64, sub gateway.Subscription) {
	for ev := range sub.Events() {
		switch ev.Kind {
		case gateway.EventInsert:
			var row ChatRow
			if err := ev.Row.Decode(&row); err != nil {
				log.Printf("⚠️ dropping malformed realtime row: %v", err)
				continue
			}
			s.insert(gen, row)
		case gateway.EventResync:
			if err := s.resync(context.Background(), gen); err != nil {
				log.Printf("⚠️ resync after reconnect: %v", err)
			}
		}
	}
}

// OnRealtimeInsert merges a pushed row into the session when it belongs to
// the selected conversation.
func (s *Store) OnRealtimeInsert(row ChatRow) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	s.insert(gen, row)
}

func (s *Store) insert(gen uint64, row ChatRow) {
	s.mu.Lock()
	if gen != s.gen || s.selected == "" || row.ConversationKey != s.selected {
		s.mu.Unlock()
		return
	}
	changed := s.mergeLocked(rowTurns(row))
	s.mu.Unlock()

	if changed {
		s.emit(ChangeSession)
	}
}

// Resync re-fetches the selected conversation and merges whatever the
// realtime stream may have missed. While the first fetch is still running the
// resync is deferred until it completes; otherwise it needs a ready session.
func (s *Store) Resync(ctx context.Context) error {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	return s.resync(ctx, gen)
}

func (s *Store) resync(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	if s.state == Loading {
		s.resyncPending = true
		s.mu.Unlock()
		return nil
	}
	if s.state != Ready {
		s.mu.Unlock()
		return nil
	}
	key := s.selected
	s.mu.Unlock()

	rows, err := s.src.FetchRows(ctx, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	changed := s.mergeLocked(Linearize(rows))
	s.mu.Unlock()

	if changed {
		s.emit(ChangeSession)
	}
	return nil
}

// mergeLocked inserts turns not seen yet, keeping the session ordered.
func (s *Store) mergeLocked(turns []ChatTurn) bool {
	changed := false
	for _, t := range turns {
		if _, dup := s.seen[t.ID]; dup {
			continue
		}
		s.seen[t.ID] = struct{}{}
		s.turns = insertTurn(s.turns, t)
		changed = true
	}
	return changed
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Conversations: append([]Conversation(nil), s.conversations...),
		Selected:      s.selected,
		State:         s.state,
		Turns:         append([]ChatTurn(nil), s.turns...),
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

// Close releases the subscription. The store ignores all later input.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	release(sub)
}

// ---------------------------------------------
// 🔁 Hooks for the Reconciler
// ---------------------------------------------

// beginControl applies target optimistically and returns the state to roll
// back to.
func (s *Store) beginControl(key string, target ControlState) (ControlState, error) {
	s.mu.Lock()
	if _, busy := s.overrides[key]; busy {
		s.mu.Unlock()
		return "", ErrTogglePending
	}
	i := s.indexLocked(key)
	if i < 0 {
		s.mu.Unlock()
		return "", ErrUnknownConversation
	}
	prev := s.conversations[i].ControlState
	s.overrides[key] = target
	s.conversations[i].ControlState = target
	s.mu.Unlock()

	s.emit(ChangeConversations)
	return prev, nil
}

// endControl settles key on final and lifts the override.
func (s *Store) endControl(key string, final ControlState) {
	s.mu.Lock()
	delete(s.overrides, key)
	if i := s.indexLocked(key); i >= 0 {
		s.conversations[i].ControlState = final
	}
	s.mu.Unlock()

	s.emit(ChangeConversations)
}

// appendPending adds an optimistic turn if key is still selected.
func (s *Store) appendPending(key string, t ChatTurn) bool {
	s.mu.Lock()
	if s.closed || s.selected != key {
		s.mu.Unlock()
		return false
	}
	s.seen[t.ID] = struct{}{}
	s.turns = insertTurn(s.turns, t)
	s.mu.Unlock()

	s.emit(ChangeSession)
	return true
}

// confirmPending swaps the optimistic turn for the stored row's turns. The
// realtime stream may already have delivered them.
func (s *Store) confirmPending(id string, row ChatRow) {
	s.mu.Lock()
	removed := s.removeLocked(id)
	merged := false
	if row.ConversationKey == s.selected && !s.closed {
		merged = s.mergeLocked(rowTurns(row))
	}
	s.mu.Unlock()

	if removed || merged {
		s.emit(ChangeSession)
	}
}

func (s *Store) dropPending(id string) {
	s.mu.Lock()
	removed := s.removeLocked(id)
	s.mu.Unlock()

	if removed {
		s.emit(ChangeSession)
	}
}

func (s *Store) removeLocked(id string) bool {
	for i, t := range s.turns {
		if t.ID == id {
			s.turns = append(s.turns[:i], s.turns[i+1:]...)
			delete(s.seen, id)
			return true
		}
	}
	return false
}
