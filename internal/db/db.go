package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
            id TEXT PRIMARY KEY,
            kind TEXT NOT NULL,
            participants TEXT[] NOT NULL,
            request_state TEXT,
            requester TEXT,
            blocked_by TEXT,
            encrypted BOOLEAN NOT NULL DEFAULT FALSE,
            name TEXT,
            avatar_ref TEXT,
            group_type TEXT,
            movement_ref TEXT,
            owner TEXT,
            admin_set TEXT[] NOT NULL DEFAULT '{}',
            poster_allowlist TEXT[] NOT NULL DEFAULT '{}',
            post_mode TEXT,
            direct_key TEXT,
            version BIGINT NOT NULL DEFAULT 1,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS conversations_direct_key
            ON conversations (direct_key) WHERE direct_key IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS conversations_recency
            ON conversations (updated_at DESC);`,
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender TEXT NOT NULL,
            body TEXT NOT NULL,
            seq BIGSERIAL,
            delivered_to TEXT[] NOT NULL DEFAULT '{}',
            read_by TEXT[] NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS messages_conversation_seq
            ON messages (conversation_id, seq DESC);`,
		`CREATE TABLE IF NOT EXISTS message_reactions (
            message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            emoji TEXT NOT NULL,
            identity TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (message_id, emoji, identity)
        );`,
		`CREATE TABLE IF NOT EXISTS blocks (
            blocker TEXT NOT NULL,
            blocked TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (blocker, blocked)
        );`,
		`CREATE TABLE IF NOT EXISTS follows (
            follower TEXT NOT NULL,
            followee TEXT NOT NULL,
            PRIMARY KEY (follower, followee)
        );`,
		`CREATE TABLE IF NOT EXISTS public_keys (
            identity TEXT PRIMARY KEY,
            key_data TEXT NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS movement_evidence (
            movement_ref TEXT NOT NULL,
            identity TEXT NOT NULL,
            approved BOOLEAN NOT NULL DEFAULT FALSE,
            PRIMARY KEY (movement_ref, identity)
        );`,
		`CREATE TABLE IF NOT EXISTS movements (
            ref TEXT PRIMARY KEY,
            owner TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS movement_group_opt_outs (
            identity TEXT PRIMARY KEY
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
