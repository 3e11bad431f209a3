package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dkeye/society/internal/domain"
)

const notificationColumns = `id, user_id, society_id, title, message, type, is_read, created_at, read_at`

type Notifications struct {
	db *sqlx.DB
}

func (r *Notifications) Create(ctx context.Context, n *domain.Notification) error {
	query := r.db.Rebind(`INSERT INTO notifications (` + notificationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.SocietyID, n.Title, n.Message, n.Type,
		n.Read, n.CreatedAt.UTC(), n.ReadAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListForUser returns the newest notifications first.
func (r *Notifications) ListForUser(ctx context.Context, user domain.UserID, filter domain.NotificationFilter, limit int) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	switch filter {
	case domain.FilterUnread:
		query += ` AND is_read = FALSE`
	case domain.FilterRead:
		query += ` AND is_read = TRUE`
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	if limit <= 0 {
		limit = 50
	}

	out := []domain.Notification{}
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), user, limit); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// MarkRead only touches notifications owned by user. Marking an already read
// notification keeps its original read time.
func (r *Notifications) MarkRead(ctx context.Context, id domain.NotificationID, user domain.UserID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, ?)
		WHERE id = ? AND user_id = ?`), at.UTC(), id, user)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *Notifications) MarkAllRead(ctx context.Context, user domain.UserID, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE notifications
		SET is_read = TRUE, read_at = ?
		WHERE user_id = ? AND is_read = FALSE`), at.UTC(), user)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *Notifications) UnreadCount(ctx context.Context, user domain.UserID) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE`), user)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
