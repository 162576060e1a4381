package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-pedidos/internal/notify"
)

// Reconciler applies operator actions optimistically to a Store and settles
// them once the remote call returns. Nothing is retried.
type Reconciler struct {
	store    *Store
	actions  Actions
	notifier notify.Notifier
	now      func() time.Time
}

func NewReconciler(store *Store, actions Actions, notifier notify.Notifier) *Reconciler {
	if notifier == nil {
		notifier = notify.Log{}
	}
	return &Reconciler{store: store, actions: actions, notifier: notifier, now: time.Now}
}

// ToggleControl hands the conversation to the other actor. The new state is
// visible in the store before the remote call completes and is reverted if
// it fails.
func (r *Reconciler) ToggleControl(ctx context.Context, key string) (ControlState, error) {
	conv, ok := r.store.Conversation(key)
	if !ok {
		return "", ErrUnknownConversation
	}
	target := conv.ControlState.Complement()
	prev, err := r.store.beginControl(key, target)
	if err != nil {
		return "", err
	}

	if err := r.actions.SetControl(ctx, key, target); err != nil {
		r.store.endControl(key, prev)
		r.notifier.Notify(notify.Errorf("Erro ao alterar o controle da conversa: %v", err))
		return prev, err
	}

	r.store.endControl(key, target)
	if target == Human {
		r.notifier.Notify(notify.Info("Você assumiu a conversa com " + DisplayName(key)))
	} else {
		r.notifier.Notify(notify.Info("Conversa com " + DisplayName(key) + " devolvida ao bot"))
	}
	// The list entry may carry a newer snippet by now; a failed reload keeps
	// the settled state.
	_ = r.store.LoadConversationList(ctx)
	return target, nil
}

// SendMessage sends text as the human operator. Only allowed while the
// conversation is under human control.
func (r *Reconciler) SendMessage(ctx context.Context, key, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	conv, ok := r.store.Conversation(key)
	if !ok {
		return ErrUnknownConversation
	}
	if conv.ControlState != Human {
		return ErrAutomated
	}

	pending := pendingTurn(uuid.NewString(), text, r.now())
	r.store.appendPending(key, pending)

	row, err := r.actions.SendMessage(ctx, key, text)
	if errors.Is(err, ErrNotRecorded) {
		// Delivered, so the turn stays on screen.
		r.notifier.Notify(notify.Errorf("Mensagem enviada, mas não foi registrada no histórico: %v", err))
		return err
	}
	if err != nil {
		r.store.dropPending(pending.ID)
		r.notifier.Notify(notify.Errorf("Erro ao enviar mensagem: %v", err))
		return err
	}
	r.store.confirmPending(pending.ID, row)
	return nil
}
