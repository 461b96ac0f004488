package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/domain"
	"marketplace/pkg/utils"
)

type MySQLBidRepository struct {
	db *sql.DB
}

func NewMySQLBidRepository(db *sql.DB) *MySQLBidRepository {
	return &MySQLBidRepository{db: db}
}

const bidColumns = `id, uuid, revision_id, uid, offer_id, bid, status, created, changed`

func (r *MySQLBidRepository) ListBidsForOffer(ctx context.Context, offerID int64) ([]*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE offer_id = ? ORDER BY bid DESC, id ASC`
	return r.queryBids(ctx, "mysql.ListBidsForOffer", query, offerID)
}

func (r *MySQLBidRepository) HighestBid(ctx context.Context, offerID int64) (float64, bool, error) {
	const op = "mysql.HighestBid"

	var highest sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(bid) FROM bid WHERE offer_id = ? AND status = ?`,
		offerID, int(domain.BidEnabled)).Scan(&highest)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	return highest.Float64, highest.Valid, nil
}

func (r *MySQLBidRepository) CountBids(ctx context.Context, offerID int64) (int, error) {
	const op = "mysql.CountBids"

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bid WHERE offer_id = ?`, offerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

func (r *MySQLBidRepository) UserBids(ctx context.Context, offerID, userID int64) ([]*domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bid WHERE offer_id = ? AND uid = ? ORDER BY id ASC`
	return r.queryBids(ctx, "mysql.UserBids", query, offerID, userID)
}

func (r *MySQLBidRepository) GetBid(ctx context.Context, bidID int64) (*domain.Bid, error) {
	const op = "mysql.GetBid"

	bid, err := scanBid(r.db.QueryRowContext(ctx, `SELECT `+bidColumns+` FROM bid WHERE id = ?`, bidID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: bid %d: %w", op, bidID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return bid, nil
}

// CreateBid inserts the bid row and its first revision in one transaction.
func (r *MySQLBidRepository) CreateBid(ctx context.Context, bid *domain.Bid) error {
	const op = "mysql.CreateBid"

	if bid.UUID == "" {
		bid.UUID = utils.NewUUID()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        INSERT INTO bid (uuid, revision_id, uid, offer_id, bid, status, created, changed)
        VALUES (?, 0, ?, ?, ?, ?, ?, ?)
    `, bid.UUID, bid.OwnerID, bid.OfferID, bid.Amount, int(bid.Status), bid.Created, bid.Changed)
	if err != nil {
		return fmt.Errorf("%s: insert bid: %w", op, err)
	}
	bidID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%s: bid id: %w", op, err)
	}

	revisionID, err := insertRevision(ctx, tx, &domain.BidRevision{
		BidID:     bidID,
		Amount:    bid.Amount,
		EditorID:  bid.OwnerID,
		Timestamp: bid.Created,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE bid SET revision_id = ? WHERE id = ?`, revisionID, bidID); err != nil {
		return fmt.Errorf("%s: set revision: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	bid.ID = bidID
	bid.RevisionID = revisionID
	return nil
}

// CreateBidRevision appends rev and makes it the bid's current revision.
func (r *MySQLBidRepository) CreateBidRevision(ctx context.Context, bid *domain.Bid, rev *domain.BidRevision) error {
	const op = "mysql.CreateBidRevision"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	var locked int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM bid WHERE id = ? FOR UPDATE`, bid.ID).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: bid %d: %w", op, bid.ID, domain.ErrNotFound)
		}
		return fmt.Errorf("%s: lock bid: %w", op, err)
	}

	rev.BidID = bid.ID
	revisionID, err := insertRevision(ctx, tx, rev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE bid SET bid = ?, revision_id = ?, changed = ? WHERE id = ?`,
		rev.Amount, revisionID, rev.Timestamp, bid.ID)
	if err != nil {
		return fmt.Errorf("%s: update bid: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	rev.RevisionID = revisionID
	bid.RevisionID = revisionID
	bid.Amount = rev.Amount
	bid.Changed = rev.Timestamp
	return nil
}

func (r *MySQLBidRepository) DeleteBid(ctx context.Context, bidID int64) error {
	const op = "mysql.DeleteBid"

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM bid WHERE id = ?`, bidID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectAffected(res, op, "bid", bidID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bid_revision WHERE id = ?`, bidID); err != nil {
		return fmt.Errorf("%s: revisions: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (r *MySQLBidRepository) ListRevisions(ctx context.Context, bidID int64) ([]*domain.BidRevision, error) {
	const op = "mysql.ListRevisions"

	query := `
        SELECT revision_id, id, bid, revision_uid, revision_timestamp, revision_log
        FROM bid_revision WHERE id = ?
        ORDER BY revision_id ASC
    `
	rows, err := r.db.QueryContext(ctx, query, bidID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var revisions []*domain.BidRevision
	for rows.Next() {
		var (
			rev domain.BidRevision
			log sql.NullString
		)
		if err := rows.Scan(&rev.RevisionID, &rev.BidID, &rev.Amount, &rev.EditorID, &rev.Timestamp, &log); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		rev.LogMessage = log.String
		revisions = append(revisions, &rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return revisions, nil
}

func (r *MySQLBidRepository) queryBids(ctx context.Context, op, query string, args ...interface{}) ([]*domain.Bid, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return bids, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBid(row rowScanner) (*domain.Bid, error) {
	var (
		bid    domain.Bid
		status int
	)
	err := row.Scan(&bid.ID, &bid.UUID, &bid.RevisionID, &bid.OwnerID, &bid.OfferID,
		&bid.Amount, &status, &bid.Created, &bid.Changed)
	if err != nil {
		return nil, err
	}
	bid.Status = domain.BidStatus(status)
	return &bid, nil
}

func insertRevision(ctx context.Context, tx *sql.Tx, rev *domain.BidRevision) (int64, error) {
	res, err := tx.ExecContext(ctx, `
        INSERT INTO bid_revision (id, bid, revision_uid, revision_timestamp, revision_log)
        VALUES (?, ?, ?, ?, ?)
    `, rev.BidID, rev.Amount, rev.EditorID, rev.Timestamp, nullString(rev.LogMessage))
	if err != nil {
		return 0, fmt.Errorf("insert revision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("revision id: %w", err)
	}
	return id, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
