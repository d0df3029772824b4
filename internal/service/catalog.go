package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/bookswap/internal/errs"
	"github.com/and161185/bookswap/internal/model"
	"github.com/and161185/bookswap/internal/repository"
)

// CatalogService defines the book lifecycle.
type CatalogService interface {
	// ListAvailable returns every book open for exchange with owners resolved.
	ListAvailable(ctx context.Context) ([]model.Book, error)
	// Create inserts an available book with no pending requests.
	Create(ctx context.Context, nb model.NewBook) (*model.Book, error)
	// ListByOwner returns all books of a user, available or not.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Book, error)
	// Get returns one book with its owner resolved.
	Get(ctx context.Context, id uuid.UUID) (*model.Book, error)
	// Update applies a partial update.
	Update(ctx context.Context, id uuid.UUID, p model.BookPatch) (*model.Book, error)
	// Delete removes a book and cancels every request that references it.
	Delete(ctx context.Context, id uuid.UUID) (*model.Book, error)
}

// Catalog manages the book lifecycle on top of the book and exchange repositories.
type Catalog struct {
	books     repository.BookRepository
	exchanges repository.ExchangeRepository
	dir       Directory
	log       *zap.Logger
}

// NewCatalog constructs the catalog service.
func NewCatalog(books repository.BookRepository, exchanges repository.ExchangeRepository, dir Directory, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{books: books, exchanges: exchanges, dir: dir, log: log}
}

// ListAvailable returns the full set; there is no pagination.
func (c *Catalog) ListAvailable(ctx context.Context) ([]model.Book, error) {
	bs, err := c.books.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}
	return c.withOwners(ctx, bs)
}

// Create validates required text fields and the owner id.
func (c *Catalog) Create(ctx context.Context, nb model.NewBook) (*model.Book, error) {
	nb.Title = strings.TrimSpace(nb.Title)
	nb.Author = strings.TrimSpace(nb.Author)
	nb.Genre = strings.TrimSpace(nb.Genre)
	switch {
	case nb.Title == "":
		return nil, fmt.Errorf("title is required: %w", errs.ErrValidation)
	case nb.Author == "":
		return nil, fmt.Errorf("author is required: %w", errs.ErrValidation)
	case nb.Genre == "":
		return nil, fmt.Errorf("genre is required: %w", errs.ErrValidation)
	case nb.OwnerID == uuid.Nil:
		return nil, fmt.Errorf("owner is required: %w", errs.ErrValidation)
	}
	return c.books.Create(ctx, nb)
}

func (c *Catalog) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Book, error) {
	bs, err := c.books.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return c.withOwners(ctx, bs)
}

func (c *Catalog) Get(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	b, err := c.books.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("book %s: %w", id, err)
	}
	name, err := c.dir.DisplayName(ctx, b.Owner.ID)
	if err != nil {
		return nil, err
	}
	b.Owner.Username = name
	return b, nil
}

// Update rejects provided-but-empty text fields.
func (c *Catalog) Update(ctx context.Context, id uuid.UUID, p model.BookPatch) (*model.Book, error) {
	for field, v := range map[string]*string{"title": p.Title, "author": p.Author, "genre": p.Genre} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return nil, fmt.Errorf("%s must not be empty: %w", field, errs.ErrValidation)
		}
	}
	b, err := c.books.Update(ctx, id, p)
	if err != nil {
		return nil, fmt.Errorf("book %s: %w", id, err)
	}
	return b, nil
}

// Delete cancels every request referencing the book, then removes it.
func (c *Catalog) Delete(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	if _, err := c.books.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("book %s: %w", id, err)
	}
	n, err := c.exchanges.CancelForBook(ctx, id)
	if err != nil {
		return nil, err
	}
	b, err := c.books.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("book %s: %w", id, err)
	}
	c.log.Info("book deleted", zap.String("book_id", id.String()), zap.Int64("cancelled_requests", n))
	return b, nil
}

func (c *Catalog) withOwners(ctx context.Context, bs []model.Book) ([]model.Book, error) {
	nm := newNames(c.dir)
	for i := range bs {
		name, err := nm.resolve(ctx, bs[i].Owner.ID)
		if err != nil {
			return nil, err
		}
		bs[i].Owner.Username = name
	}
	return bs, nil
}
