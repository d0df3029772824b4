package repository

import (
	"context"

	"github.com/and161185/bookswap/internal/model"
	"github.com/gofrs/uuid/v5"
)

// BookRepository stores catalog entries. Returned books carry the owner id only;
// display names are resolved by the services.
type BookRepository interface {
	// Create inserts a new available book with no pending requests.
	Create(ctx context.Context, nb model.NewBook) (*model.Book, error)
	// GetByID returns a single book.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Book, error)
	// GetMany returns the books that still exist among ids, in no particular order.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]model.Book, error)
	// ListAvailable returns every book with isAvailable=true.
	ListAvailable(ctx context.Context) ([]model.Book, error)
	// ListByOwner returns every book owned by ownerID.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Book, error)
	// Update applies a partial update and returns the new state.
	Update(ctx context.Context, id uuid.UUID, p model.BookPatch) (*model.Book, error)
	// Save overwrites owner, availability and the pending request list of an existing book.
	Save(ctx context.Context, b *model.Book) error
	// AppendExchangeRequest adds a back-reference to a pending request.
	AppendExchangeRequest(ctx context.Context, bookID, requestID uuid.UUID) error
	// Delete removes the book and returns its last state.
	Delete(ctx context.Context, id uuid.UUID) (*model.Book, error)
}
