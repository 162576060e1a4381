package console

import (
	"encoding/json"
	"errors"
	"fmt"

	"go-pedidos/internal/chat"
	"go-pedidos/internal/dashboard"
)

// Inbound frame types.
const (
	TypeSelect               = "select"
	TypeToggleControl        = "toggle_control"
	TypeSend                 = "send"
	TypeRefreshConversations = "refresh_conversations"
	TypeRefreshDashboard     = "refresh_dashboard"

	// typeReconcile is queued by the hub, never accepted from the wire.
	typeReconcile = "reconcile"
)

// Outbound frame types.
const (
	TypeConversations = "conversations"
	TypeSession       = "session"
	TypeDashboard     = "dashboard"
	TypeNotification  = "notification"
)

var ErrUnknownCommand = errors.New("unknown command")

type Inbound struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
}

type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func decodeInbound(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, fmt.Errorf("decode command: %w", err)
	}
	switch in.Type {
	case TypeSelect, TypeRefreshConversations, TypeRefreshDashboard:
	case TypeToggleControl, TypeSend:
		if in.ConversationID == "" {
			return Inbound{}, fmt.Errorf("%s: missing conversation_id", in.Type)
		}
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownCommand, in.Type)
	}
	return in, nil
}

// ---------------------------------------------
// 🖼️ Views
// ---------------------------------------------

type conversationView struct {
	chat.Conversation
	DisplayName string `json:"display_name"`
	Preview     string `json:"preview"`
}

type turnView struct {
	chat.ChatTurn
	Pending   bool `json:"pending"`
	Separator bool `json:"separator"`
}

type sessionView struct {
	ConversationID string            `json:"conversation_id"`
	DisplayName    string            `json:"display_name,omitempty"`
	State          chat.SessionState `json:"state"`
	Error          string            `json:"error,omitempty"`
	ControlState   chat.ControlState `json:"control_state,omitempty"`
	CanSend        bool              `json:"can_send"`
	Turns          []turnView        `json:"turns"`
}

func conversationsFrame(snap chat.Snapshot) Outbound {
	views := make([]conversationView, len(snap.Conversations))
	for i, c := range snap.Conversations {
		views[i] = conversationView{
			Conversation: c,
			DisplayName:  chat.DisplayName(c.Key),
			Preview:      chat.Preview(c.LastMessageSnippet),
		}
	}
	return Outbound{Type: TypeConversations, Data: views}
}

func sessionFrame(snap chat.Snapshot) Outbound {
	v := sessionView{
		ConversationID: snap.Selected,
		State:          snap.State,
		Error:          snap.Error,
		Turns:          make([]turnView, len(snap.Turns)),
	}
	if snap.Selected != "" {
		v.DisplayName = chat.DisplayName(snap.Selected)
	}
	for _, c := range snap.Conversations {
		if c.Key == snap.Selected {
			v.ControlState = c.ControlState
			v.CanSend = c.ControlState == chat.Human
		}
	}
	for i, t := range snap.Turns {
		v.Turns[i] = turnView{ChatTurn: t, Pending: t.Pending(), Separator: chat.NeedsSeparator(snap.Turns, i)}
	}
	return Outbound{Type: TypeSession, Data: v}
}

func dashboardFrame(st dashboard.State) Outbound {
	return Outbound{Type: TypeDashboard, Data: st}
}
