package scores

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/encorequiz/encore/go/internal/models"
)

// PostgresLedger stores score entries in the scores table. The award path is a
// single upsert so concurrent submissions for the same (user, game) pair
// serialize on the row inside the database.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Award(ctx context.Context, userID, gameID uuid.UUID, amount int) (int, error) {
	var total int
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO scores (user_id, game_id, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, game_id) DO UPDATE SET score = scores.score + EXCLUDED.score
		RETURNING score`,
		userID, gameID, amount).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to award points: %w", err)
	}
	return total, nil
}

func (l *PostgresLedger) GameLeaderboard(ctx context.Context, gameID uuid.UUID) ([]models.RankedScore, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT u.id, u.username, s.score
		FROM scores s
		JOIN users u ON u.id = s.user_id
		WHERE s.game_id = $1
		ORDER BY s.score DESC, u.id ASC`,
		gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query game leaderboard: %w", err)
	}
	return collectRanked(rows, false)
}

func (l *PostgresLedger) RoomLeaderboard(ctx context.Context, roomID uuid.UUID, limit int) ([]models.RankedScore, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT u.id, u.username, SUM(s.score) AS room_score, COUNT(DISTINCT s.game_id)
		FROM scores s
		JOIN games g ON g.id = s.game_id
		JOIN users u ON u.id = s.user_id
		WHERE g.room_id = $1
		GROUP BY u.id, u.username
		ORDER BY room_score DESC, u.id ASC
		LIMIT $2`,
		roomID, limitOrDefault(limit, RoomLeaderboardLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to query room leaderboard: %w", err)
	}
	return collectRanked(rows, true)
}

func (l *PostgresLedger) GlobalLeaderboard(ctx context.Context, limit int) ([]models.RankedScore, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT u.id, u.username, SUM(s.score) AS total_score, COUNT(DISTINCT s.game_id)
		FROM scores s
		JOIN users u ON u.id = s.user_id
		GROUP BY u.id, u.username
		ORDER BY total_score DESC, u.id ASC
		LIMIT $1`,
		limitOrDefault(limit, GlobalLeaderboardLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to query global leaderboard: %w", err)
	}
	return collectRanked(rows, true)
}

func collectRanked(rows *sql.Rows, withGames bool) ([]models.RankedScore, error) {
	defer rows.Close()
	var out []models.RankedScore
	for rows.Next() {
		var row models.RankedScore
		var err error
		if withGames {
			err = rows.Scan(&row.UserID, &row.Username, &row.Score, &row.GamesPlayed)
		} else {
			err = rows.Scan(&row.UserID, &row.Username, &row.Score)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		row.Rank = len(out) + 1
		out = append(out, row)
	}
	return out, rows.Err()
}

func limitOrDefault(limit, fallback int) int {
	if limit > 0 {
		return limit
	}
	return fallback
}

var _ Ledger = (*PostgresLedger)(nil)
