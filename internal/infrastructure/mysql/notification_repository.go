package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/domain"
	"marketplace/pkg/utils"
)

type MySQLNotificationRepository struct {
	db *sql.DB
}

func NewMySQLNotificationRepository(db *sql.DB) *MySQLNotificationRepository {
	return &MySQLNotificationRepository{db: db}
}

func (r *MySQLNotificationRepository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	const op = "mysql.CreateNotification"

	if n.UUID == "" {
		n.UUID = utils.NewUUID()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notification (uuid, offer_id, uid, message, created) VALUES (?, ?, ?, ?, ?)`,
		n.UUID, n.OfferID, n.UserID, n.Message, n.Created)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%s: last insert id: %w", op, err)
	}
	n.ID = id
	return nil
}

func (r *MySQLNotificationRepository) GetNotification(ctx context.Context, notificationID int64) (*domain.Notification, error) {
	const op = "mysql.GetNotification"

	var n domain.Notification
	err := r.db.QueryRowContext(ctx,
		`SELECT id, uuid, offer_id, uid, message, created FROM notification WHERE id = ?`, notificationID).
		Scan(&n.ID, &n.UUID, &n.OfferID, &n.UserID, &n.Message, &n.Created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: notification %d: %w", op, notificationID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &n, nil
}

func (r *MySQLNotificationRepository) ListByOffer(ctx context.Context, offerID int64) ([]*domain.Notification, error) {
	return r.list(ctx, "mysql.ListByOffer", `WHERE offer_id = ?`, offerID)
}

func (r *MySQLNotificationRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	return r.list(ctx, "mysql.ListByUser", `WHERE uid = ?`, userID)
}

func (r *MySQLNotificationRepository) DeleteNotification(ctx context.Context, notificationID int64) error {
	const op = "mysql.DeleteNotification"

	res, err := r.db.ExecContext(ctx, `DELETE FROM notification WHERE id = ?`, notificationID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(res, op, "notification", notificationID)
}

func (r *MySQLNotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "mysql.DeleteOlderThan"

	res, err := r.db.ExecContext(ctx, `DELETE FROM notification WHERE created < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n, nil
}

func (r *MySQLNotificationRepository) list(ctx context.Context, op, where string, arg interface{}) ([]*domain.Notification, error) {
	query := `SELECT id, uuid, offer_id, uid, message, created FROM notification ` + where + ` ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var list []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UUID, &n.OfferID, &n.UserID, &n.Message, &n.Created); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		list = append(list, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}
