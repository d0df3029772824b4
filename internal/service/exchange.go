package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/bookswap/internal/errs"
	"github.com/and161185/bookswap/internal/model"
	"github.com/and161185/bookswap/internal/repository"
)

// ExchangeService defines the exchange-request workflow.
type ExchangeService interface {
	// Propose creates a pending request to trade offeredBookID for requestedBookID.
	Propose(ctx context.Context, requesterID, requestedBookID, offeredBookID uuid.UUID) (*model.ExchangeRequest, error)
	// ListForBook returns the book's pending request list, populated for display.
	ListForBook(ctx context.Context, bookID uuid.UUID) ([]model.ExchangeView, error)
	// Resolve accepts or rejects a request; acceptance swaps book ownership.
	Resolve(ctx context.Context, requestID uuid.UUID, status model.ExchangeStatus) (*model.ExchangeRequest, string, error)
	// ListUserExchanges returns the requests a user sent and the ones targeting their books.
	ListUserExchanges(ctx context.Context, userID uuid.UUID) (model.UserExchanges, error)
}

// Coordinator owns exchange requests and mutates books as a side effect of resolution.
// Multi-record writes are issued in order without a transaction.
type Coordinator struct {
	books     repository.BookRepository
	exchanges repository.ExchangeRepository
	dir       Directory
	log       *zap.Logger
}

// NewCoordinator constructs the exchange service.
func NewCoordinator(books repository.BookRepository, exchanges repository.ExchangeRepository, dir Directory, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{books: books, exchanges: exchanges, dir: dir, log: log}
}

// Propose checks both books exist and are available, stores the request, then
// attaches it to the requested book. Ownership of either book is not checked.
func (c *Coordinator) Propose(ctx context.Context, requesterID, requestedBookID, offeredBookID uuid.UUID) (*model.ExchangeRequest, error) {
	if requesterID == uuid.Nil {
		return nil, fmt.Errorf("requester is required: %w", errs.ErrValidation)
	}
	requested, err := c.books.GetByID(ctx, requestedBookID)
	if err != nil {
		return nil, fmt.Errorf("requested book %s: %w", requestedBookID, err)
	}
	offered, err := c.books.GetByID(ctx, offeredBookID)
	if err != nil {
		return nil, fmt.Errorf("offered book %s: %w", offeredBookID, err)
	}
	if !requested.IsAvailable || !offered.IsAvailable {
		return nil, fmt.Errorf("book not available for exchange: %w", errs.ErrInvalidState)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	er := &model.ExchangeRequest{
		ID:              id,
		RequesterID:     requesterID,
		RequestedBookID: requestedBookID,
		OfferedBookID:   offeredBookID,
		Status:          model.StatusPending,
	}
	if err := c.exchanges.Create(ctx, er); err != nil {
		return nil, err
	}
	if err := c.books.AppendExchangeRequest(ctx, requestedBookID, er.ID); err != nil {
		c.log.Error("exchange request stored without back-reference",
			zap.String("request_id", er.ID.String()),
			zap.String("book_id", requestedBookID.String()),
			zap.Error(err))
		return nil, err
	}
	return er, nil
}

// ListForBook keeps the stored order of the book's request list.
func (c *Coordinator) ListForBook(ctx context.Context, bookID uuid.UUID) ([]model.ExchangeView, error) {
	book, err := c.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("book %s: %w", bookID, err)
	}
	reqs, err := c.exchanges.GetMany(ctx, book.ExchangeRequests)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]model.ExchangeRequest, len(reqs))
	offeredIDs := make([]uuid.UUID, 0, len(reqs))
	for _, er := range reqs {
		byID[er.ID] = er
		offeredIDs = append(offeredIDs, er.OfferedBookID)
	}
	offered, err := c.bookRefs(ctx, offeredIDs)
	if err != nil {
		return nil, err
	}

	nm := newNames(c.dir)
	out := make([]model.ExchangeView, 0, len(book.ExchangeRequests))
	for _, id := range book.ExchangeRequests {
		er, ok := byID[id]
		if !ok {
			continue
		}
		name, err := nm.resolve(ctx, er.RequesterID)
		if err != nil {
			return nil, err
		}
		v := view(er)
		v.Requester.Username = name
		v.OfferedBook = refOr(offered, er.OfferedBookID)
		out = append(out, v)
	}
	return out, nil
}

// Resolve sets the status without checking the current one; a second acceptance
// swaps the books again. A book deleted since the proposal skips the swap.
func (c *Coordinator) Resolve(ctx context.Context, requestID uuid.UUID, status model.ExchangeStatus) (*model.ExchangeRequest, string, error) {
	if !status.Resolution() {
		return nil, "", fmt.Errorf("status %q: %w", status, errs.ErrValidation)
	}
	prev, err := c.exchanges.GetByID(ctx, requestID)
	if err != nil {
		return nil, "", fmt.Errorf("exchange request %s: %w", requestID, err)
	}
	if prev.Status.Terminal() {
		c.log.Warn("resolving a request that is already resolved",
			zap.String("request_id", requestID.String()),
			zap.String("from", string(prev.Status)),
			zap.String("to", string(status)))
	}
	er, err := c.exchanges.SetStatus(ctx, requestID, status)
	if err != nil {
		return nil, "", fmt.Errorf("exchange request %s: %w", requestID, err)
	}

	if status == model.StatusAccepted {
		if err := c.swap(ctx, er); err != nil {
			return nil, "", err
		}
	}
	return er, fmt.Sprintf("Exchange request %s", status), nil
}

func (c *Coordinator) swap(ctx context.Context, er *model.ExchangeRequest) error {
	requested, err := c.books.GetByID(ctx, er.RequestedBookID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	offered, oerr := c.books.GetByID(ctx, er.OfferedBookID)
	if oerr != nil && !errors.Is(oerr, errs.ErrNotFound) {
		return oerr
	}
	if requested == nil || offered == nil {
		c.log.Info("ownership swap skipped, book gone", zap.String("request_id", er.ID.String()))
		return nil
	}

	a, b := model.SwapOwnership(*requested, *offered)
	if err := c.books.Save(ctx, &a); err != nil {
		return err
	}
	return c.books.Save(ctx, &b)
}

// ListUserExchanges derives both lists from current ownership.
func (c *Coordinator) ListUserExchanges(ctx context.Context, userID uuid.UUID) (model.UserExchanges, error) {
	sent, err := c.exchanges.ListByRequester(ctx, userID)
	if err != nil {
		return model.UserExchanges{}, err
	}
	owned, err := c.books.ListByOwner(ctx, userID)
	if err != nil {
		return model.UserExchanges{}, err
	}
	ownedIDs := make([]uuid.UUID, 0, len(owned))
	for _, b := range owned {
		ownedIDs = append(ownedIDs, b.ID)
	}
	received, err := c.exchanges.ListByRequestedBooks(ctx, ownedIDs)
	if err != nil {
		return model.UserExchanges{}, err
	}

	var bookIDs []uuid.UUID
	for _, er := range append(append([]model.ExchangeRequest{}, sent...), received...) {
		bookIDs = append(bookIDs, er.RequestedBookID, er.OfferedBookID)
	}
	refs, err := c.bookRefs(ctx, bookIDs)
	if err != nil {
		return model.UserExchanges{}, err
	}

	out := model.UserExchanges{
		Sent:     make([]model.ExchangeView, 0, len(sent)),
		Received: make([]model.ExchangeView, 0, len(received)),
	}
	for _, er := range sent {
		v := view(er)
		v.RequestedBook = refOr(refs, er.RequestedBookID)
		v.OfferedBook = refOr(refs, er.OfferedBookID)
		out.Sent = append(out.Sent, v)
	}
	nm := newNames(c.dir)
	for _, er := range received {
		name, err := nm.resolve(ctx, er.RequesterID)
		if err != nil {
			return model.UserExchanges{}, err
		}
		v := view(er)
		v.Requester.Username = name
		v.RequestedBook = refOr(refs, er.RequestedBookID)
		v.OfferedBook = refOr(refs, er.OfferedBookID)
		out.Received = append(out.Received, v)
	}
	return out, nil
}

func (c *Coordinator) bookRefs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.BookRef, error) {
	bs, err := c.books.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	refs := make(map[uuid.UUID]model.BookRef, len(bs))
	for _, b := range bs {
		refs[b.ID] = model.BookRef{ID: b.ID, Title: b.Title, Author: b.Author}
	}
	return refs, nil
}

// refOr returns the populated reference, or a bare id for a deleted book.
func refOr(refs map[uuid.UUID]model.BookRef, id uuid.UUID) model.BookRef {
	if r, ok := refs[id]; ok {
		return r
	}
	return model.BookRef{ID: id}
}

func view(er model.ExchangeRequest) model.ExchangeView {
	return model.ExchangeView{
		ID:            er.ID,
		Requester:     model.UserRef{ID: er.RequesterID},
		RequestedBook: model.BookRef{ID: er.RequestedBookID},
		OfferedBook:   model.BookRef{ID: er.OfferedBookID},
		Status:        er.Status,
		CreatedAt:     er.CreatedAt,
		UpdatedAt:     er.UpdatedAt,
	}
}
