package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-pedidos/internal/gateway"
	"go-pedidos/internal/whatsapp"
)

var errNoRowReturned = errors.New("no row returned")

// RegisterFunctions installs the privileged chat actions. They hold the
// messaging credentials, so clients only ever reach them through Invoke.
func RegisterFunctions(fns *gateway.Functions, sender whatsapp.Sender) {
	fns.Register(FnSetControl, setControl)
	fns.Register(FnSendMessage, sendMessage(sender))
}

func setControl(ctx context.Context, gw gateway.Gateway, payload json.RawMessage) (gateway.Row, error) {
	var req setControlRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("set-control: %w", err)
	}
	if req.ConversationID == "" {
		return nil, ErrUnknownConversation
	}
	rows, err := gw.Mutate(ctx, TableControl, gateway.Upsert,
		map[string]any{"active": req.Active, "updated_at": time.Now()},
		[]gateway.Filter{gateway.Equal(columnConversation, req.ConversationID)})
	if err != nil {
		return nil, err
	}
	return first(rows)
}

func sendMessage(sender whatsapp.Sender) gateway.Function {
	return func(ctx context.Context, gw gateway.Gateway, payload json.RawMessage) (gateway.Row, error) {
		var req sendMessageRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("send-message: %w", err)
		}
		content := strings.TrimSpace(req.Content)
		if content == "" {
			return nil, ErrEmptyMessage
		}
		if req.ConversationID == "" {
			return nil, ErrUnknownConversation
		}

		state, err := currentControl(ctx, gw, req.ConversationID)
		if err != nil {
			return nil, err
		}
		if state != Human {
			return nil, ErrAutomated
		}

		if err := sender.Send(ctx, Phone(req.ConversationID), content); err != nil {
			return nil, fmt.Errorf("send-message: %w", err)
		}

		rows, err := gw.Mutate(ctx, TableMessages, gateway.Insert, map[string]any{
			columnConversation: req.ConversationID,
			"bot_message":      content,
			"active":           false,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("send-message: %w: %w", ErrNotRecorded, err)
		}
		return first(rows)
	}
}

// currentControl treats a conversation without a control row as automated.
func currentControl(ctx context.Context, gw gateway.Gateway, key string) (ControlState, error) {
	rows, err := gw.Query(ctx, TableControl, []gateway.Filter{gateway.Equal(columnConversation, key)}, nil)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return Automated, nil
	}
	var cr controlRow
	if err := rows[0].Decode(&cr); err != nil {
		return "", fmt.Errorf("decode control row: %w", err)
	}
	return controlFromActive(cr.Active), nil
}

func first(rows []gateway.Row) (gateway.Row, error) {
	if len(rows) == 0 {
		return nil, errNoRowReturned
	}
	return rows[0], nil
}
