package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// RowQuerier loads rows by filter. Gateway satisfies it.
type RowQuerier interface {
	Query(ctx context.Context, table string, filters []Filter, order *Order) ([]Row, error)
}

// Relay forwards PostgreSQL NOTIFY events to the Redis channel subscribers
// of that row's key listen on. NOTIFY payloads are capped at 8000 bytes, so
// the trigger sends only the id and key; the full row is loaded here.
type Relay struct {
	dsn     string
	redis   *redis.Client
	rows    RowQuerier
	channel string
	table   string
	column  string
	backoff time.Duration
}

func NewRelay(dsn string, redisClient *redis.Client, rows RowQuerier, channel, table, column string) *Relay {
	return &Relay{
		dsn:     dsn,
		redis:   redisClient,
		rows:    rows,
		channel: channel,
		table:   table,
		column:  column,
		backoff: 2 * time.Second,
	}
}

// Run blocks until ctx is cancelled, reconnecting the LISTEN connection when
// it drops.
func (r *Relay) Run(ctx context.Context) error {
	for {
		err := r.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("⚠️  relay %s: %v; reconnecting in %s", r.channel, err, r.backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff):
		}
	}
}

func (r *Relay) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, r.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{r.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Printf("✅ Relay listening on %s", r.channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if err := r.forward(ctx, n.Payload); err != nil {
			log.Printf("❌ relay forward: %v", err)
		}
	}
}

func (r *Relay) forward(ctx context.Context, payload string) error {
	target, row, err := r.resolve(ctx, payload)
	if err != nil {
		return err
	}
	return r.redis.Publish(ctx, target, []byte(row)).Err()
}

// resolve turns a {"id", <column>} notification into the channel name and
// the stored row to publish on it.
func (r *Relay) resolve(ctx context.Context, payload string) (string, Row, error) {
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var ref map[string]any
	if err := dec.Decode(&ref); err != nil {
		return "", nil, fmt.Errorf("decode payload: %w", err)
	}
	key, ok := ref[r.column]
	if !ok || key == nil {
		return "", nil, fmt.Errorf("payload has no %s", r.column)
	}
	num, _ := ref["id"].(json.Number)
	id, err := num.Int64()
	if err != nil {
		return "", nil, fmt.Errorf("payload has no numeric id")
	}

	rows, err := r.rows.Query(ctx, r.table, []Filter{Equal("id", id)}, nil)
	if err != nil {
		return "", nil, fmt.Errorf("load %s row %v: %w", r.table, id, err)
	}
	if len(rows) == 0 {
		return "", nil, fmt.Errorf("%s row %v not found", r.table, id)
	}
	return ChannelName(r.table, r.column, key), rows[0], nil
}
