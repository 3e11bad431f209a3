package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dkeye/society/internal/domain"
)

type Announcements struct {
	db *sqlx.DB
}

func (r *Announcements) Create(ctx context.Context, a *domain.Announcement) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO announcements
		(id, society_id, author_id, title, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		a.ID, a.SocietyID, a.AuthorID, a.Title, a.Body, a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *Announcements) ListBySociety(ctx context.Context, society domain.SocietyID, limit int) ([]domain.Announcement, error) {
	if limit <= 0 {
		limit = 50
	}
	out := []domain.Announcement{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`SELECT id, society_id, author_id, title, body, created_at
		FROM announcements WHERE society_id = ? ORDER BY created_at DESC LIMIT ?`), society, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
