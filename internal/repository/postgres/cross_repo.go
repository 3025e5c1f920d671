package postgres

import (
	"context"

	"github.com/devyljin/jintranet-back/internal/models"
	"github.com/devyljin/jintranet-back/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

type CrossRepo struct{ db *pgxpool.Pool }

func NewCrossRepo(db *pgxpool.Pool) repository.CrossRepository { return &CrossRepo{db: db} }

func (r *CrossRepo) Create(ctx context.Context, userID, code string) (*models.Cross, error) {
	var c models.Cross
	err := r.db.QueryRow(ctx, `
		INSERT INTO crosses (user_id, code)
		VALUES ($1,$2)
		RETURNING id, user_id, code, created_at
	`, userID, code).Scan(&c.ID, &c.UserID, &c.Code, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCodesByUser returns the issue keys the user created, newest first.
func (r *CrossRepo) ListCodesByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT code FROM crosses
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}
