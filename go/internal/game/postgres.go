package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/encorequiz/encore/go/internal/models"
)

// PostgresRepository stores games in the games table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const gameColumns = `id, room_id, status, current_question, question_type, deadline, winner_id, started_at, finished_at`

func (r *PostgresRepository) Create(ctx context.Context, g *models.Game) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO games (id, room_id, status, started_at)
		VALUES ($1, $2, $3, $4)`,
		g.ID, g.RoomID, g.Status, g.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
	return scanGame(row)
}

func (r *PostgresRepository) Update(ctx context.Context, g *models.Game) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE games
		SET status = $2, current_question = $3, question_type = $4,
		    deadline = $5, winner_id = $6, finished_at = $7
		WHERE id = $1`,
		g.ID, g.Status, g.CurrentQuestion, g.QuestionType, g.Deadline, g.WinnerID, g.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrGameNotFound
	}
	return nil
}

func (r *PostgresRepository) GetPlayingByRoom(ctx context.Context, roomID uuid.UUID) (*models.Game, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE room_id = $1 AND status = $2`,
		roomID, models.GameStatusPlaying)
	return scanGame(row)
}

func (r *PostgresRepository) ListGameIDsByRoom(ctx context.Context, roomID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM games WHERE room_id = $1 ORDER BY started_at`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan game id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanGame(row *sql.Row) (*models.Game, error) {
	var g models.Game
	err := row.Scan(&g.ID, &g.RoomID, &g.Status, &g.CurrentQuestion, &g.QuestionType,
		&g.Deadline, &g.WinnerID, &g.StartedAt, &g.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to scan game: %w", err)
	}
	return &g, nil
}

var _ Repository = (*PostgresRepository)(nil)
