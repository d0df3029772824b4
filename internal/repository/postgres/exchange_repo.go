package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/bookswap/internal/errs"
	"github.com/and161185/bookswap/internal/model"
)

const exchangeCols = `id, requester_id, requested_book_id, offered_book_id, status, created_at, updated_at`

// ExchangeRepo implements ExchangeRepository using PostgreSQL.
type ExchangeRepo struct{ db *DB }

// NewExchangeRepo constructs an exchange request repository.
func NewExchangeRepo(db *DB) *ExchangeRepo { return &ExchangeRepo{db: db} }

// Create inserts a request and fills its timestamps.
func (r *ExchangeRepo) Create(ctx context.Context, er *model.ExchangeRequest) error {
	const q = `
INSERT INTO exchange_requests (id, requester_id, requested_book_id, offered_book_id, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`
	return r.db.Pool.QueryRow(ctx, q, er.ID, er.RequesterID, er.RequestedBookID, er.OfferedBookID, string(er.Status)).
		Scan(&er.CreatedAt, &er.UpdatedAt)
}

// GetByID returns a single request.
func (r *ExchangeRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.ExchangeRequest, error) {
	const q = `SELECT ` + exchangeCols + ` FROM exchange_requests WHERE id=$1`
	return scanExchange(r.db.Pool.QueryRow(ctx, q, id))
}

// GetMany returns the requests among ids.
func (r *ExchangeRepo) GetMany(ctx context.Context, ids []uuid.UUID) ([]model.ExchangeRequest, error) {
	if len(ids) == 0 {
		return []model.ExchangeRequest{}, nil
	}
	const q = `SELECT ` + exchangeCols + ` FROM exchange_requests WHERE id = ANY($1::uuid[])`
	return r.list(ctx, q, uuidStrings(ids))
}

// SetStatus overwrites the status regardless of the current one.
func (r *ExchangeRepo) SetStatus(ctx context.Context, id uuid.UUID, status model.ExchangeStatus) (*model.ExchangeRequest, error) {
	const q = `
UPDATE exchange_requests SET status=$2, updated_at=now()
WHERE id=$1
RETURNING ` + exchangeCols
	return scanExchange(r.db.Pool.QueryRow(ctx, q, id, string(status)))
}

// CancelForBook cancels every request that references bookID on either side.
func (r *ExchangeRepo) CancelForBook(ctx context.Context, bookID uuid.UUID) (int64, error) {
	const q = `
UPDATE exchange_requests SET status='cancelled', updated_at=now()
WHERE requested_book_id=$1 OR offered_book_id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, bookID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListByRequester returns requests sent by userID.
func (r *ExchangeRepo) ListByRequester(ctx context.Context, userID uuid.UUID) ([]model.ExchangeRequest, error) {
	const q = `SELECT ` + exchangeCols + ` FROM exchange_requests WHERE requester_id=$1 ORDER BY created_at ASC`
	return r.list(ctx, q, userID)
}

// ListByRequestedBooks returns requests targeting any of bookIDs.
func (r *ExchangeRepo) ListByRequestedBooks(ctx context.Context, bookIDs []uuid.UUID) ([]model.ExchangeRequest, error) {
	if len(bookIDs) == 0 {
		return []model.ExchangeRequest{}, nil
	}
	const q = `SELECT ` + exchangeCols + ` FROM exchange_requests WHERE requested_book_id = ANY($1::uuid[]) ORDER BY created_at ASC`
	return r.list(ctx, q, uuidStrings(bookIDs))
}

func (r *ExchangeRepo) list(ctx context.Context, q string, args ...any) ([]model.ExchangeRequest, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ExchangeRequest{}
	for rows.Next() {
		er, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *er)
	}
	return out, rows.Err()
}

func scanExchange(row pgx.Row) (*model.ExchangeRequest, error) {
	var (
		er     model.ExchangeRequest
		status string
	)
	if err := row.Scan(&er.ID, &er.RequesterID, &er.RequestedBookID, &er.OfferedBookID, &status, &er.CreatedAt, &er.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	er.Status = model.ExchangeStatus(status)
	return &er, nil
}
