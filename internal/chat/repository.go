package chat

import (
	"context"
	"fmt"
	"time"

	"go-pedidos/internal/gateway"
)

const (
	TableMessages       = "chat_messages"
	TableControl        = "conversation_control"
	FnListConversations = "get_conversations"
	FnSendMessage       = "send-message"
	FnSetControl        = "set-control"

	columnConversation = "conversation_id"
	columnCreatedAt    = "created_at"
)

// Source is the read side the Store consumes.
type Source interface {
	ListConversations(ctx context.Context) ([]Conversation, error)
	FetchRows(ctx context.Context, key string) ([]ChatRow, error)
	Subscribe(ctx context.Context, key string) (gateway.Subscription, error)
}

// Actions are the privileged writes the Reconciler issues.
type Actions interface {
	SetControl(ctx context.Context, key string, target ControlState) error
	SendMessage(ctx context.Context, key, text string) (ChatRow, error)
}

// Repository reads and writes chat data through the gateway.
type Repository struct {
	gw gateway.Gateway
}

func NewRepository(gw gateway.Gateway) *Repository {
	return &Repository{gw: gw}
}

func (r *Repository) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := r.gw.Call(ctx, FnListConversations, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		var cr conversationRow
		if err := row.Decode(&cr); err != nil {
			return nil, fmt.Errorf("decode conversation: %w", err)
		}
		out = append(out, cr.toConversation())
	}
	return out, nil
}

// FetchRows returns every row of a conversation, oldest first.
func (r *Repository) FetchRows(ctx context.Context, key string) ([]ChatRow, error) {
	rows, err := r.gw.Query(ctx, TableMessages,
		[]gateway.Filter{gateway.Equal(columnConversation, key)},
		&gateway.Order{Column: columnCreatedAt, Ascending: true})
	if err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

func (r *Repository) Subscribe(ctx context.Context, key string) (gateway.Subscription, error) {
	return r.gw.Subscribe(ctx, TableMessages, gateway.Equal(columnConversation, key))
}

func (r *Repository) SetControl(ctx context.Context, key string, target ControlState) error {
	_, err := r.gw.Invoke(ctx, FnSetControl, setControlRequest{
		ConversationID: key,
		Active:         target == Automated,
	})
	return err
}

// SendMessage returns the stored row of the outgoing message.
func (r *Repository) SendMessage(ctx context.Context, key, text string) (ChatRow, error) {
	row, err := r.gw.Invoke(ctx, FnSendMessage, sendMessageRequest{
		ConversationID: key,
		Content:        text,
	})
	if err != nil {
		return ChatRow{}, err
	}
	var cr ChatRow
	if err := row.Decode(&cr); err != nil {
		return ChatRow{}, fmt.Errorf("decode sent message: %w", err)
	}
	return cr, nil
}

// RecentTurns is a one-shot read used by the REST API.
func (r *Repository) RecentTurns(ctx context.Context, key string) ([]ChatTurn, error) {
	rows, err := r.FetchRows(ctx, key)
	if err != nil {
		return nil, err
	}
	return Linearize(rows), nil
}

func decodeRows(rows []gateway.Row) ([]ChatRow, error) {
	out := make([]ChatRow, 0, len(rows))
	for _, row := range rows {
		var cr ChatRow
		if err := row.Decode(&cr); err != nil {
			return nil, fmt.Errorf("decode chat row: %w", err)
		}
		out = append(out, cr)
	}
	return out, nil
}

type setControlRequest struct {
	ConversationID string `json:"conversation_id"`
	Active         bool   `json:"active"`
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

type controlRow struct {
	ConversationID string    `json:"conversation_id"`
	Active         bool      `json:"active"`
	UpdatedAt      time.Time `json:"updated_at"`
}
