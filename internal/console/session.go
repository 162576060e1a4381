package console

import (
	"context"
	"errors"

	"go-pedidos/internal/chat"
	"go-pedidos/internal/dashboard"
	"go-pedidos/internal/notify"
)

// Deps are the shared backends every console session reads through.
type Deps struct {
	Chat      chat.Source
	Actions   chat.Actions
	Dashboard dashboard.Source
}

// session is one operator's view: a Store, its Reconciler and a dashboard
// ViewModel. Every change is pushed as an Outbound frame.
type session struct {
	store   *chat.Store
	control *chat.Reconciler
	dash    *dashboard.ViewModel
	push    func(Outbound)
	notes   notify.Notifier
}

func newSession(deps Deps, push func(Outbound)) *session {
	notes := notify.Func(func(n notify.Notification) {
		push(Outbound{Type: TypeNotification, Data: n})
	})
	s := &session{
		store: chat.NewStore(deps.Chat, notes),
		dash:  dashboard.NewViewModel(deps.Dashboard, notes),
		push:  push,
		notes: notes,
	}
	s.control = chat.NewReconciler(s.store, deps.Actions, notes)
	s.store.SetListener(s.onChange)
	return s
}

func (s *session) onChange(kind chat.ChangeKind) {
	snap := s.store.Snapshot()
	switch kind {
	case chat.ChangeConversations:
		s.push(conversationsFrame(snap))
		// The selected conversation's control state lives in the list.
		if snap.Selected != "" {
			s.push(sessionFrame(snap))
		}
	case chat.ChangeSession:
		s.push(sessionFrame(snap))
	}
}

// handle runs one command to completion. Remote failures are already
// reported by the store and reconciler; rejected commands are reported here.
func (s *session) handle(ctx context.Context, cmd Inbound) error {
	var err error
	switch cmd.Type {
	case TypeSelect:
		err = s.store.SelectConversation(ctx, cmd.ConversationID)
	case TypeToggleControl:
		_, err = s.control.ToggleControl(ctx, cmd.ConversationID)
	case TypeSend:
		err = s.control.SendMessage(ctx, cmd.ConversationID, cmd.Content)
	case TypeRefreshConversations:
		err = s.store.LoadConversationList(ctx)
	case TypeRefreshDashboard:
		err = s.dash.Refresh(ctx)
		s.push(dashboardFrame(s.dash.State()))
	case typeReconcile:
		err = s.reconcile(ctx)
	default:
		err = ErrUnknownCommand
	}
	s.reject(err)
	return err
}

// reconcile is the periodic pass that catches anything the realtime stream
// missed.
func (s *session) reconcile(ctx context.Context) error {
	listErr := s.store.LoadConversationList(ctx)
	return errors.Join(listErr, s.store.Resync(ctx))
}

func (s *session) reject(err error) {
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrAutomated):
		s.notes.Notify(notify.Errorf("Assuma a conversa antes de enviar mensagens"))
	case errors.Is(err, chat.ErrEmptyMessage):
		s.notes.Notify(notify.Errorf("Digite uma mensagem"))
	case errors.Is(err, chat.ErrTogglePending):
		s.notes.Notify(notify.Info("Aguarde a alteração anterior terminar"))
	case errors.Is(err, chat.ErrUnknownConversation):
		s.notes.Notify(notify.Errorf("Conversa não encontrada"))
	case errors.Is(err, ErrUnknownCommand):
		s.notes.Notify(notify.Errorf("Comando desconhecido"))
	}
}

func (s *session) close() {
	s.store.Close()
}
