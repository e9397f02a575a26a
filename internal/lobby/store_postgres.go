package lobby

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps counts in the room_presence table (db/migrations).
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Adjust(ctx context.Context, roomID string, delta int) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO room_presence (room_id, connections)
		VALUES ($1, GREATEST(0, $2::int))
		ON CONFLICT (room_id) DO UPDATE
		SET connections = GREATEST(0, room_presence.connections + $2::int),
		    updated_at = now()
	`, roomID, delta)
	return err
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DELETE FROM room_presence`)
	return err
}

func (s *PostgresStore) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.Query(ctx, `SELECT room_id, connections FROM room_presence`)
	if err != nil {
		return nil, err
	}

	out := make(map[string]int)
	var (
		room string
		n    int
	)
	_, err = pgx.ForEachRow(rows, []any{&room, &n}, func() error {
		out[room] = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
