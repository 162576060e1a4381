package gateway

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrUnknownFunction    = errors.New("unknown function")
	ErrUnfilteredMutation = errors.New("update and delete require at least one filter")
	ErrUnsupportedFilter  = errors.New("subscriptions support a single equality filter")
	ErrEmptyPayload       = errors.New("mutation payload is empty")
)

// Gateway is the remote data surface every feature package talks to: tables,
// aggregates, server-side functions, privileged callable functions and the
// realtime insert stream.
type Gateway interface {
	Query(ctx context.Context, table string, filters []Filter, order *Order) ([]Row, error)
	Aggregate(ctx context.Context, table string, filters []Filter, agg Aggregation) (float64, error)
	Call(ctx context.Context, fn string, args map[string]any) ([]Row, error)
	Invoke(ctx context.Context, fn string, payload any) (Row, error)
	Subscribe(ctx context.Context, table string, filter Filter) (Subscription, error)
	Mutate(ctx context.Context, table string, op MutationOp, payload map[string]any, filters []Filter) ([]Row, error)
}

// Row is one record encoded as a JSON object.
type Row json.RawMessage

func (r Row) Decode(v any) error {
	return json.Unmarshal(r, v)
}

func (r Row) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r *Row) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

type Op string

const (
	Eq  Op = "="
	Neq Op = "<>"
	Gt  Op = ">"
	Gte Op = ">="
	Lt  Op = "<"
	Lte Op = "<="
)

type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Equal(column string, value any) Filter { return Filter{Column: column, Op: Eq, Value: value} }

type Order struct {
	Column    string
	Ascending bool
}

type AggregationMode int

const (
	Count AggregationMode = iota
	Sum
)

type Aggregation struct {
	Mode   AggregationMode
	Column string // ignored for Count
}

type MutationOp int

const (
	Insert MutationOp = iota
	Update
	Delete
	// Upsert inserts payload plus the filter values, updating payload columns
	// when a row with the same filter columns already exists.
	Upsert
)

type EventKind int

const (
	// EventInsert carries a newly inserted row.
	EventInsert EventKind = iota
	// EventResync is emitted after the push channel reconnected; inserts may
	// have been missed in between.
	EventResync
)

type Event struct {
	Kind EventKind
	Row  Row
}

// Subscription is a live stream of events for one filter. Events is closed
// after Close returns or the underlying channel is gone.
type Subscription interface {
	Events() <-chan Event
	Close() error
}
