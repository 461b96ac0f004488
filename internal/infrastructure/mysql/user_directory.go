package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/domain"
)

// MySQLUserDirectory reads display names from the users table. Accounts are
// managed elsewhere.
type MySQLUserDirectory struct {
	db *sql.DB
}

func NewMySQLUserDirectory(db *sql.DB) *MySQLUserDirectory {
	return &MySQLUserDirectory{db: db}
}

func (r *MySQLUserDirectory) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	const op = "mysql.GetUser"

	var u domain.User
	err := r.db.QueryRowContext(ctx, `SELECT uid, name FROM users WHERE uid = ?`, userID).Scan(&u.ID, &u.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: user %d: %w", op, userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}
