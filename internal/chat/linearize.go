package chat

import (
	"math"
	"sort"
	"strconv"
	"time"
)

const pendingPrefix = "pending-"

// Linearize turns stored rows (any order) into chronologically ordered turns.
// A row yields its user turn, then its bot turn; rows with neither message
// yield nothing.
func Linearize(rows []ChatRow) []ChatTurn {
	sorted := make([]ChatRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	turns := make([]ChatTurn, 0, 2*len(sorted))
	for _, r := range sorted {
		turns = append(turns, rowTurns(r)...)
	}
	return turns
}

func rowTurns(r ChatRow) []ChatTurn {
	var out []ChatTurn
	if r.UserMessage != nil {
		out = append(out, ChatTurn{
			ID:        turnID(r.ID, originUser),
			Content:   *r.UserMessage,
			Direction: Incoming,
			Timestamp: r.CreatedAt,
			rowID:     r.ID,
			origin:    originUser,
		})
	}
	if r.BotMessage != nil {
		dir := OutgoingAutomated
		if !r.automated() {
			dir = OutgoingHuman
		}
		out = append(out, ChatTurn{
			ID:        turnID(r.ID, originBot),
			Content:   *r.BotMessage,
			Direction: dir,
			Timestamp: r.CreatedAt,
			rowID:     r.ID,
			origin:    originBot,
		})
	}
	return out
}

func turnID(rowID int64, o origin) string {
	return strconv.FormatInt(rowID, 10) + "-" + o.String()
}

// pendingTurn sorts after every stored turn with the same timestamp.
func pendingTurn(id, content string, at time.Time) ChatTurn {
	return ChatTurn{
		ID:        pendingPrefix + id,
		Content:   content,
		Direction: OutgoingHuman,
		Timestamp: at,
		rowID:     math.MaxInt64,
		origin:    originBot,
	}
}

// insertTurn places t in its ordered position in turns.
func insertTurn(turns []ChatTurn, t ChatTurn) []ChatTurn {
	i := sort.Search(len(turns), func(i int) bool { return t.before(turns[i]) })
	turns = append(turns, ChatTurn{})
	copy(turns[i+1:], turns[i:])
	turns[i] = t
	return turns
}
