package postgres

import (
	"context"

	"github.com/devyljin/jintranet-back/internal/models"
	"github.com/devyljin/jintranet-back/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct{ db *pgxpool.Pool }

func NewUserRepo(db *pgxpool.Pool) repository.UserRepository { return &UserRepo{db: db} }

// Create stores a new user (bcrypt hash in password_h).
func (r *UserRepo) Create(ctx context.Context, username, name, surname, role, passwordHash string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (username, name, surname, role, password_h)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, username, name, surname, role, active, created_at, updated_at`,
		username, name, surname, role, passwordHash).
		Scan(&u.ID, &u.Username, &u.Name, &u.Surname, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, string, error) {
	var u models.User
	var ph string
	err := r.db.QueryRow(ctx, `
		SELECT id, username, name, surname, role, active, password_h, created_at, updated_at
		FROM users WHERE username=$1`, username).
		Scan(&u.ID, &u.Username, &u.Name, &u.Surname, &u.Role, &u.Active, &ph, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", nil
		}
		return nil, "", err
	}
	return &u, ph, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		SELECT id, username, name, surname, role, active, created_at, updated_at
		FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Username, &u.Name, &u.Surname, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
