package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/bookswap/internal/errs"
	"github.com/and161185/bookswap/internal/model"
)

const bookCols = `id, title, author, genre, owner_id, is_available, exchange_requests::text[], created_at, updated_at`

// BookRepo implements BookRepository using PostgreSQL.
type BookRepo struct{ db *DB }

// NewBookRepo constructs a book repository.
func NewBookRepo(db *DB) *BookRepo { return &BookRepo{db: db} }

// Create inserts a new available book with an empty request list.
func (r *BookRepo) Create(ctx context.Context, nb model.NewBook) (*model.Book, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO books (id, title, author, genre, owner_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + bookCols
	b, err := scanBook(r.db.Pool.QueryRow(ctx, q, id, nb.Title, nb.Author, nb.Genre, nb.OwnerID))
	if isCheckViolation(err) {
		return nil, fmt.Errorf("book: %w", errs.ErrValidation)
	}
	return b, err
}

// GetByID returns a single book.
func (r *BookRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books WHERE id=$1`
	return scanBook(r.db.Pool.QueryRow(ctx, q, id))
}

// GetMany returns the existing books among ids.
func (r *BookRepo) GetMany(ctx context.Context, ids []uuid.UUID) ([]model.Book, error) {
	if len(ids) == 0 {
		return []model.Book{}, nil
	}
	const q = `SELECT ` + bookCols + ` FROM books WHERE id = ANY($1::uuid[])`
	return r.list(ctx, q, uuidStrings(ids))
}

// ListAvailable returns every book open for exchange.
func (r *BookRepo) ListAvailable(ctx context.Context) ([]model.Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books WHERE is_available ORDER BY created_at ASC`
	return r.list(ctx, q)
}

// ListByOwner returns every book of a user regardless of availability.
func (r *BookRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books WHERE owner_id=$1 ORDER BY created_at ASC`
	return r.list(ctx, q, ownerID)
}

// Update applies only the fields present in p.
func (r *BookRepo) Update(ctx context.Context, id uuid.UUID, p model.BookPatch) (*model.Book, error) {
	if p.Empty() {
		return r.GetByID(ctx, id)
	}
	q, args, err := buildBookUpdate(id, p)
	if err != nil {
		return nil, err
	}
	b, err := scanBook(r.db.Pool.QueryRow(ctx, q, args...))
	if isCheckViolation(err) {
		return nil, fmt.Errorf("book: %w", errs.ErrValidation)
	}
	return b, err
}

func buildBookUpdate(id uuid.UUID, p model.BookPatch) (string, []any, error) {
	rec := goqu.Record{"updated_at": goqu.L("now()")}
	if p.Title != nil {
		rec["title"] = *p.Title
	}
	if p.Author != nil {
		rec["author"] = *p.Author
	}
	if p.Genre != nil {
		rec["genre"] = *p.Genre
	}
	if p.IsAvailable != nil {
		rec["is_available"] = *p.IsAvailable
	}
	return goqu.Dialect("postgres").
		Update("books").
		Prepared(true).
		Set(rec).
		Where(goqu.C("id").Eq(id.String())).
		Returning(goqu.L(bookCols)).
		ToSQL()
}

// Save persists owner, availability and pending requests of an existing book.
func (r *BookRepo) Save(ctx context.Context, b *model.Book) error {
	const q = `
UPDATE books
SET owner_id=$2, is_available=$3, exchange_requests=$4::uuid[], updated_at=now()
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, b.ID, b.Owner.ID, b.IsAvailable, uuidStrings(b.ExchangeRequests))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// AppendExchangeRequest adds requestID to the book's pending list.
func (r *BookRepo) AppendExchangeRequest(ctx context.Context, bookID, requestID uuid.UUID) error {
	const q = `
UPDATE books
SET exchange_requests = array_append(exchange_requests, $2::uuid), updated_at=now()
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, bookID, requestID.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a book and returns the deleted row.
func (r *BookRepo) Delete(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	const q = `DELETE FROM books WHERE id=$1 RETURNING ` + bookCols
	return scanBook(r.db.Pool.QueryRow(ctx, q, id))
}

func (r *BookRepo) list(ctx context.Context, q string, args ...any) ([]model.Book, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBook(row pgx.Row) (*model.Book, error) {
	var (
		b    model.Book
		reqs []string
	)
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Owner.ID, &b.IsAvailable, &reqs, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if b.ExchangeRequests, err = parseUUIDs(reqs); err != nil {
		return nil, err
	}
	return &b, nil
}
