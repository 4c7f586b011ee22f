package rooms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/encorequiz/encore/go/internal/models"
)

// PostgresRepository stores rooms in the rooms table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, room *models.Room) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO rooms (id, name, genre, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		room.ID, room.Name, room.Genre, room.Status)
	if err := row.Scan(&room.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrRoomNameTaken
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, genre, status, created_at FROM rooms WHERE id = $1`, id)
	return scanRoom(row)
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Room, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, genre, status, created_at FROM rooms WHERE name = $1`, name)
	return scanRoom(row)
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, genre, status, created_at FROM rooms ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var out []models.Room
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.Genre, &room.Status, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.RoomStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update room status: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return requireRow(res)
}

func scanRoom(row *sql.Row) (*models.Room, error) {
	var room models.Room
	if err := row.Scan(&room.ID, &room.Name, &room.Genre, &room.Status, &room.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}
	return &room, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
