package repository

import (
	"context"

	"github.com/and161185/bookswap/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ExchangeRepository stores exchange requests. Requests are never deleted.
type ExchangeRepository interface {
	// Create inserts a pending request.
	Create(ctx context.Context, r *model.ExchangeRequest) error
	// GetByID returns a single request.
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExchangeRequest, error)
	// GetMany returns the requests among ids, in no particular order.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]model.ExchangeRequest, error)
	// SetStatus overwrites the status and returns the updated request.
	SetStatus(ctx context.Context, id uuid.UUID, status model.ExchangeStatus) (*model.ExchangeRequest, error)
	// CancelForBook cancels every request referencing bookID on either side, whatever its status.
	CancelForBook(ctx context.Context, bookID uuid.UUID) (int64, error)
	// ListByRequester returns requests sent by userID, oldest first.
	ListByRequester(ctx context.Context, userID uuid.UUID) ([]model.ExchangeRequest, error)
	// ListByRequestedBooks returns requests targeting any of bookIDs, oldest first.
	ListByRequestedBooks(ctx context.Context, bookIDs []uuid.UUID) ([]model.ExchangeRequest, error)
}
