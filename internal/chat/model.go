package chat

import (
	"errors"
	"strings"
	"time"
)

// ---------------------------------------------
// 🗄️ Stored rows & derived turns
// ---------------------------------------------

// ChatRow is one stored chat_messages row. A nil message field means the
// column was null or absent.
type ChatRow struct {
	ID              int64     `json:"id"`
	ConversationKey string    `json:"conversation_id"`
	UserMessage     *string   `json:"user_message"`
	BotMessage      *string   `json:"bot_message"`
	CreatedAt       time.Time `json:"created_at"`
	Active          *bool     `json:"active"` // nil = automated
}

// automated reports whether the bot held control when the row was written.
func (r ChatRow) automated() bool {
	return r.Active == nil || *r.Active
}

type Direction string

const (
	Incoming          Direction = "incoming"
	OutgoingAutomated Direction = "outgoing-automated"
	OutgoingHuman     Direction = "outgoing-human"
)

type origin int

const (
	originUser origin = iota
	originBot
)

func (o origin) String() string {
	if o == originUser {
		return "user"
	}
	return "bot"
}

// ChatTurn is one directional message derived from a ChatRow. IDs have the
// form "<row-id>-<origin>"; unconfirmed local sends use "pending-<uuid>".
type ChatTurn struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Direction Direction `json:"direction"`
	Timestamp time.Time `json:"timestamp"`

	rowID  int64
	origin origin
}

// Pending reports whether the turn is an optimistic send not yet stored.
func (t ChatTurn) Pending() bool {
	return strings.HasPrefix(t.ID, pendingPrefix)
}

// before is the session ordering: timestamp, row id, then user before bot.
func (t ChatTurn) before(o ChatTurn) bool {
	if !t.Timestamp.Equal(o.Timestamp) {
		return t.Timestamp.Before(o.Timestamp)
	}
	if t.rowID != o.rowID {
		return t.rowID < o.rowID
	}
	return t.origin < o.origin
}

// ---------------------------------------------
// 💬 Conversations
// ---------------------------------------------

type ControlState string

const (
	Automated ControlState = "automated"
	Human     ControlState = "human"
)

func (c ControlState) Complement() ControlState {
	if c == Human {
		return Automated
	}
	return Human
}

func controlFromActive(active bool) ControlState {
	if active {
		return Automated
	}
	return Human
}

type Conversation struct {
	Key                string       `json:"conversation_id"`
	ControlState       ControlState `json:"control_state"`
	LastMessageSnippet string       `json:"last_message_snippet"`
	LastMessageAt      time.Time    `json:"last_message_at"`
}

// conversationRow is the shape returned by get_conversations().
type conversationRow struct {
	ConversationID     string    `json:"conversation_id"`
	LastMessageSnippet *string   `json:"last_message_snippet"`
	Active             *bool     `json:"active"`
	LastMessageAt      time.Time `json:"last_message_at"`
}

func (r conversationRow) toConversation() Conversation {
	c := Conversation{
		Key:           r.ConversationID,
		ControlState:  Automated,
		LastMessageAt: r.LastMessageAt,
	}
	if r.LastMessageSnippet != nil {
		c.LastMessageSnippet = *r.LastMessageSnippet
	}
	if r.Active != nil {
		c.ControlState = controlFromActive(*r.Active)
	}
	return c
}

// ---------------------------------------------
// ⚠️ Errors
// ---------------------------------------------

var (
	ErrAutomated           = errors.New("conversation is under automated control")
	ErrTogglePending       = errors.New("a control change is already in progress for this conversation")
	ErrEmptyMessage        = errors.New("message is empty")
	ErrUnknownConversation = errors.New("unknown conversation")
	// ErrNotRecorded means the message reached WhatsApp but storing it failed.
	ErrNotRecorded = errors.New("message was delivered but could not be recorded")
)
