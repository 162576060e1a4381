package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Postgres implements Gateway on a PostgreSQL database, Redis pub/sub for the
// realtime stream and an in-process function registry.
type Postgres struct {
	db        *sql.DB
	redis     *redis.Client
	functions *Functions
}

func NewPostgres(db *sql.DB, redisClient *redis.Client, functions *Functions) *Postgres {
	if functions == nil {
		functions = NewFunctions()
	}
	return &Postgres{db: db, redis: redisClient, functions: functions}
}

func (p *Postgres) Query(ctx context.Context, table string, filters []Filter, order *Order) ([]Row, error) {
	q, args, err := buildSelect(table, filters, order)
	if err != nil {
		return nil, err
	}
	rows, err := p.collect(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return rows, nil
}

func (p *Postgres) Aggregate(ctx context.Context, table string, filters []Filter, agg Aggregation) (float64, error) {
	q, args, err := buildAggregate(table, filters, agg)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := p.db.QueryRowContext(ctx, q, args...).Scan(&v); err != nil {
		return 0, fmt.Errorf("aggregate %s: %w", table, err)
	}
	return v, nil
}

func (p *Postgres) Call(ctx context.Context, fn string, args map[string]any) ([]Row, error) {
	q, vals, err := buildCall(fn, args)
	if err != nil {
		return nil, err
	}
	rows, err := p.collect(ctx, q, vals)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", fn, err)
	}
	return rows, nil
}

func (p *Postgres) Invoke(ctx context.Context, fn string, payload any) (Row, error) {
	f, ok := p.functions.Lookup(fn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, fn)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", fn, err)
	}
	return f(ctx, p, raw)
}

func (p *Postgres) Subscribe(ctx context.Context, table string, filter Filter) (Subscription, error) {
	if filter.Op != Eq {
		return nil, ErrUnsupportedFilter
	}
	if _, err := quoteIdent(table); err != nil {
		return nil, err
	}
	if _, err := quoteIdent(filter.Column); err != nil {
		return nil, err
	}
	return newRedisSubscription(ctx, p.redis, ChannelName(table, filter.Column, filter.Value))
}

func (p *Postgres) Mutate(ctx context.Context, table string, op MutationOp, payload map[string]any, filters []Filter) ([]Row, error) {
	q, args, err := buildMutation(table, op, payload, filters)
	if err != nil {
		return nil, err
	}
	rows, err := p.collect(ctx, q, args)
	if err != nil {
		return nil, fmt.Errorf("mutate %s: %w", table, err)
	}
	return rows, nil
}

func (p *Postgres) collect(ctx context.Context, q string, args []any) ([]Row, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, Row(s))
	}
	return out, rows.Err()
}
