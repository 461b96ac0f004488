package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"marketplace/internal/domain"
	"marketplace/pkg/utils"
)

type MySQLOfferRepository struct {
	db *sql.DB
}

func NewMySQLOfferRepository(db *sql.DB) *MySQLOfferRepository {
	return &MySQLOfferRepository{db: db}
}

func (r *MySQLOfferRepository) CreateOffer(ctx context.Context, offer *domain.Offer) error {
	const op = "mysql.CreateOffer"

	if offer.UUID == "" {
		offer.UUID = utils.NewUUID()
	}
	query := `
        INSERT INTO offer (uuid, revision_id, title, uid, status, offer_type, price, created, changed)
        VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?)
    `
	res, err := r.db.ExecContext(ctx, query,
		offer.UUID, offer.Title, offer.OwnerID, int(offer.Status),
		string(offer.Mode.Kind), priceColumn(offer.Mode), offer.Created, offer.Changed)
	if err != nil {
		return fmt.Errorf("%s: insert: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%s: last insert id: %w", op, err)
	}
	offer.ID = id
	offer.RevisionID = 1
	return nil
}

func (r *MySQLOfferRepository) GetOffer(ctx context.Context, offerID int64) (*domain.Offer, error) {
	const op = "mysql.GetOffer"

	query := `
        SELECT id, uuid, revision_id, title, uid, status, offer_type, price, created, changed
        FROM offer WHERE id = ?
    `

	var (
		offer  domain.Offer
		status int
		kind   string
		price  sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, query, offerID).Scan(
		&offer.ID, &offer.UUID, &offer.RevisionID, &offer.Title, &offer.OwnerID,
		&status, &kind, &price, &offer.Created, &offer.Changed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: offer %d: %w", op, offerID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	offer.Status = domain.OfferStatus(status)
	offer.Mode = domain.OfferMode{Kind: domain.ModeKind(kind), Price: price.Float64}
	return &offer, nil
}

// UpdateOffer writes title, status and changed. Owner and mode are never
// rewritten.
func (r *MySQLOfferRepository) UpdateOffer(ctx context.Context, offer *domain.Offer) error {
	const op = "mysql.UpdateOffer"

	query := `
        UPDATE offer SET title = ?, status = ?, changed = ?, revision_id = revision_id + 1
        WHERE id = ?
    `
	res, err := r.db.ExecContext(ctx, query, offer.Title, int(offer.Status), offer.Changed, offer.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectAffected(res, op, "offer", offer.ID); err != nil {
		return err
	}
	offer.RevisionID++
	return nil
}

func (r *MySQLOfferRepository) DeleteOffer(ctx context.Context, offerID int64) error {
	const op = "mysql.DeleteOffer"

	res, err := r.db.ExecContext(ctx, `DELETE FROM offer WHERE id = ?`, offerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectAffected(res, op, "offer", offerID)
}

func (r *MySQLOfferRepository) CountOffersByOwner(ctx context.Context, ownerID int64) (int, error) {
	const op = "mysql.CountOffersByOwner"

	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offer WHERE uid = ?`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

func priceColumn(mode domain.OfferMode) interface{} {
	if mode.Kind != domain.ModeFixedMinimum {
		return nil
	}
	return mode.Price
}

func expectAffected(res sql.Result, op, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %s %d: %w", op, entity, id, domain.ErrNotFound)
	}
	return nil
}
