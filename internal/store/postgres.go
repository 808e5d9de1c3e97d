package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"troupe/internal/game"
)

// Postgres keeps each player's profile and market as jsonb documents.
// Mutations lock the profile row FOR UPDATE inside a transaction, which
// serializes all actions for one player while leaving other players
// untouched.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS troupe;
		CREATE TABLE IF NOT EXISTS troupe.profiles (
			player_id  text PRIMARY KEY,
			doc        jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS troupe.markets (
			player_id  text PRIMARY KEY REFERENCES troupe.profiles (player_id) ON DELETE CASCADE,
			doc        jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS troupe.credentials (
			player_id   text PRIMARY KEY,
			secret_hash text NOT NULL,
			created_at  timestamptz NOT NULL DEFAULT now()
		);
	`)
	return err
}

func (s *Postgres) Create(ctx context.Context, st *game.PlayerState) error {
	doc, err := json.Marshal(st.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO troupe.profiles (player_id, doc)
		VALUES ($1, $2)
		ON CONFLICT (player_id) DO NOTHING
	`, st.Profile.PlayerID, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return game.ErrProfileExists
	}
	return nil
}

func (s *Postgres) View(ctx context.Context, playerID string) (*game.PlayerState, error) {
	st := &game.PlayerState{}
	var profileDoc []byte
	err := s.db.QueryRow(ctx, `
		SELECT doc FROM troupe.profiles WHERE player_id = $1
	`, playerID).Scan(&profileDoc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(profileDoc, &st.Profile); err != nil {
		return nil, fmt.Errorf("decode profile %q: %w", playerID, err)
	}
	var marketDoc []byte
	err = s.db.QueryRow(ctx, `
		SELECT doc FROM troupe.markets WHERE player_id = $1
	`, playerID).Scan(&marketDoc)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if len(marketDoc) > 0 {
		if err := json.Unmarshal(marketDoc, &st.Market); err != nil {
			return nil, fmt.Errorf("decode market %q: %w", playerID, err)
		}
	}
	return st, nil
}

func (s *Postgres) Mutate(ctx context.Context, playerID string, fn func(*game.PlayerState) error) (*game.PlayerState, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	st := &game.PlayerState{}
	var profileDoc []byte
	err = tx.QueryRow(ctx, `
		SELECT doc FROM troupe.profiles WHERE player_id = $1 FOR UPDATE
	`, playerID).Scan(&profileDoc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(profileDoc, &st.Profile); err != nil {
		return nil, fmt.Errorf("decode profile %q: %w", playerID, err)
	}
	var marketDoc []byte
	err = tx.QueryRow(ctx, `
		SELECT doc FROM troupe.markets WHERE player_id = $1 FOR UPDATE
	`, playerID).Scan(&marketDoc)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if len(marketDoc) > 0 {
		if err := json.Unmarshal(marketDoc, &st.Market); err != nil {
			return nil, fmt.Errorf("decode market %q: %w", playerID, err)
		}
	}

	if err := fn(st); err != nil {
		return nil, err
	}

	profileDoc, err = json.Marshal(st.Profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE troupe.profiles SET doc = $2, updated_at = now() WHERE player_id = $1
	`, playerID, profileDoc); err != nil {
		return nil, err
	}
	if st.Market != nil {
		marketDoc, err = json.Marshal(st.Market)
		if err != nil {
			return nil, fmt.Errorf("encode market: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO troupe.markets (player_id, doc)
			VALUES ($1, $2)
			ON CONFLICT (player_id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
		`, playerID, marketDoc); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Postgres) PutCredential(ctx context.Context, playerID, secretHash string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO troupe.credentials (player_id, secret_hash)
		VALUES ($1, $2)
		ON CONFLICT (player_id) DO UPDATE SET secret_hash = EXCLUDED.secret_hash
	`, playerID, secretHash)
	return err
}

func (s *Postgres) GetCredential(ctx context.Context, playerID string) (string, error) {
	var hash string
	err := s.db.QueryRow(ctx, `
		SELECT secret_hash FROM troupe.credentials WHERE player_id = $1
	`, playerID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", game.ErrProfileNotFound
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}
