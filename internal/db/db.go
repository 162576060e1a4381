package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ChatRowsChannel is the NOTIFY channel carrying every inserted chat row.
const ChatRowsChannel = "chat_rows"

type Database struct {
	Conn *sql.DB
	DSN  string
}

func NewDatabase(dsn string, maxConns int) (*Database, error) {
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if maxConns <= 0 {
		maxConns = 25
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn, DSN: dsn}, nil
}

func (d *Database) Close() error {
	if d.Conn != nil {
		return d.Conn.Close()
	}
	return nil
}

// AutoMigrate creates the tables, RPC functions and the realtime trigger the
// gateway relies on. Every statement is idempotent.
func (d *Database) AutoMigrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS purchase (
            id BIGSERIAL PRIMARY KEY,
            description TEXT NOT NULL DEFAULT '',
            value NUMERIC(12,2) NOT NULL DEFAULT 0,
            pay BOOLEAN NOT NULL DEFAULT FALSE,
            payment_stat TEXT NOT NULL DEFAULT 'Em Analise',
            phone VARCHAR(32) NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`CREATE TABLE IF NOT EXISTS chat_messages (
            id BIGSERIAL PRIMARY KEY,
            conversation_id VARCHAR(64) NOT NULL,
            user_message TEXT,
            bot_message TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            active BOOLEAN NOT NULL DEFAULT TRUE
        )`,

		`CREATE INDEX IF NOT EXISTS chat_messages_conversation_idx
            ON chat_messages (conversation_id, created_at, id)`,

		`CREATE TABLE IF NOT EXISTS conversation_control (
            conversation_id VARCHAR(64) PRIMARY KEY,
            active BOOLEAN NOT NULL DEFAULT TRUE,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,

		`DROP FUNCTION IF EXISTS get_sales_by_hour()`,

		`CREATE OR REPLACE FUNCTION get_sales_by_hour(from_ts TIMESTAMPTZ, to_ts TIMESTAMPTZ, utc_offset_minutes INT)
        RETURNS TABLE (hour_of_day INT, sales_count BIGINT) AS $$
            SELECT EXTRACT(HOUR FROM (p.created_at AT TIME ZONE 'UTC') + make_interval(mins => utc_offset_minutes))::INT,
                   COUNT(*)
            FROM purchase p
            WHERE p.pay AND p.created_at >= from_ts AND p.created_at < to_ts
            GROUP BY 1
            ORDER BY 1
        $$ LANGUAGE sql STABLE`,

		`CREATE OR REPLACE FUNCTION get_conversations()
        RETURNS TABLE (conversation_id VARCHAR, last_message_snippet TEXT, active BOOLEAN, last_message_at TIMESTAMPTZ) AS $$
            SELECT * FROM (
                SELECT DISTINCT ON (m.conversation_id)
                       m.conversation_id,
                       COALESCE(m.bot_message, m.user_message) AS snippet,
                       COALESCE(c.active, TRUE) AS control_active,
                       m.created_at
                FROM chat_messages m
                LEFT JOIN conversation_control c ON c.conversation_id = m.conversation_id
                WHERE m.user_message IS NOT NULL OR m.bot_message IS NOT NULL
                ORDER BY m.conversation_id, m.created_at DESC, m.id DESC
            ) latest
            ORDER BY latest.created_at DESC
        $$ LANGUAGE sql STABLE`,

		`CREATE OR REPLACE FUNCTION notify_chat_row() RETURNS trigger AS $$
        BEGIN
            PERFORM pg_notify('chat_rows',
                json_build_object('id', NEW.id, 'conversation_id', NEW.conversation_id)::text);
            RETURN NEW;
        END;
        $$ LANGUAGE plpgsql`,

		`DROP TRIGGER IF EXISTS chat_rows_notify ON chat_messages`,

		`CREATE TRIGGER chat_rows_notify AFTER INSERT ON chat_messages
            FOR EACH ROW EXECUTE FUNCTION notify_chat_row()`,
	}

	for _, query := range queries {
		_, err := d.Conn.Exec(query)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
