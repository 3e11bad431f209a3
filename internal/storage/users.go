package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dkeye/society/internal/domain"
)

const userColumns = `id, society_id, name, email, password_hash, role, user_function, member_id, phone, created_at`

type Users struct {
	db *sqlx.DB
}

func (r *Users) Create(ctx context.Context, u *domain.User) error {
	query := r.db.Rebind(`INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.SocietyID, u.Name, u.Email, u.PasswordHash,
		u.Role, u.Function, u.MemberID, u.Phone, u.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *Users) ByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *Users) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *Users) one(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	if err := r.db.GetContext(ctx, &u, r.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &u, nil
}

func (r *Users) ListBySociety(ctx context.Context, society domain.SocietyID) ([]domain.User, error) {
	users := []domain.User{}
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE society_id = ? ORDER BY name`)
	if err := r.db.SelectContext(ctx, &users, query, society); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

func (r *Users) UpdateFunction(ctx context.Context, id domain.UserID, fn domain.Function) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET user_function = ? WHERE id = ?`), fn, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
