package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bookswap/internal/errs"
	"github.com/and161185/bookswap/internal/model"
)

// UserRepo implements UserRepository on a Store.
type UserRepo struct{ s *Store }

// NewUserRepo constructs a user repository.
func NewUserRepo(s *Store) *UserRepo { return &UserRepo{s: s} }

// Create inserts a user; emails are unique case-sensitively, like the SQL schema.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range r.s.users {
		if row.u.Email == u.Email || row.u.ID == u.ID {
			return errs.ErrAlreadyExists
		}
	}
	u.CreatedAt = r.s.now()
	r.s.users[u.ID] = userRow{seq: r.s.next(), u: *u}
	return nil
}

// GetByID loads a user by ID.
func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	u := row.u
	return &u, nil
}

// GetByEmail loads a user by email.
func (r *UserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.users {
		if row.u.Email == email {
			u := row.u
			return &u, nil
		}
	}
	return nil, errs.ErrNotFound
}

// BookRepo implements BookRepository on a Store.
type BookRepo struct{ s *Store }

// NewBookRepo constructs a book repository.
func NewBookRepo(s *Store) *BookRepo { return &BookRepo{s: s} }

// Create inserts a new available book.
func (r *BookRepo) Create(_ context.Context, nb model.NewBook) (*model.Book, error) {
	if strings.TrimSpace(nb.Title) == "" || strings.TrimSpace(nb.Author) == "" || strings.TrimSpace(nb.Genre) == "" {
		return nil, fmt.Errorf("book: %w", errs.ErrValidation)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	b := model.Book{
		ID:               id,
		Title:            nb.Title,
		Author:           nb.Author,
		Genre:            nb.Genre,
		Owner:            model.UserRef{ID: nb.OwnerID},
		IsAvailable:      true,
		ExchangeRequests: []uuid.UUID{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	r.s.books[id] = bookRow{seq: r.s.next(), b: b}
	out := cloneBook(b)
	return &out, nil
}

// GetByID returns a single book.
func (r *BookRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.books[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	b := cloneBook(row.b)
	return &b, nil
}

// GetMany returns the existing books among ids.
func (r *BookRepo) GetMany(_ context.Context, ids []uuid.UUID) ([]model.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var rows []bookRow
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		if row, ok := r.s.books[id]; ok && !seen[id] {
			seen[id] = true
			rows = append(rows, row)
		}
	}
	return sortedBooks(rows), nil
}

// ListAvailable returns every book open for exchange.
func (r *BookRepo) ListAvailable(_ context.Context) ([]model.Book, error) {
	return r.filter(func(b model.Book) bool { return b.IsAvailable }), nil
}

// ListByOwner returns every book of a user.
func (r *BookRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]model.Book, error) {
	return r.filter(func(b model.Book) bool { return b.Owner.ID == ownerID }), nil
}

func (r *BookRepo) filter(keep func(model.Book) bool) []model.Book {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var rows []bookRow
	for _, row := range r.s.books {
		if keep(row.b) {
			rows = append(rows, row)
		}
	}
	return sortedBooks(rows)
}

// Update applies only the fields present in p.
func (r *BookRepo) Update(_ context.Context, id uuid.UUID, p model.BookPatch) (*model.Book, error) {
	for _, f := range []*string{p.Title, p.Author, p.Genre} {
		if f != nil && strings.TrimSpace(*f) == "" {
			return nil, fmt.Errorf("book: %w", errs.ErrValidation)
		}
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.books[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if !p.Empty() {
		row.b = p.Apply(row.b)
		row.b.UpdatedAt = r.s.now()
		r.s.books[id] = row
	}
	b := cloneBook(row.b)
	return &b, nil
}

// Save persists owner, availability and pending requests of an existing book.
func (r *BookRepo) Save(_ context.Context, b *model.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.books[b.ID]
	if !ok {
		return errs.ErrNotFound
	}
	row.b.Owner = model.UserRef{ID: b.Owner.ID}
	row.b.IsAvailable = b.IsAvailable
	row.b.ExchangeRequests = append([]uuid.UUID{}, b.ExchangeRequests...)
	row.b.UpdatedAt = r.s.now()
	r.s.books[b.ID] = row
	return nil
}

// AppendExchangeRequest adds requestID to the book's pending list.
func (r *BookRepo) AppendExchangeRequest(_ context.Context, bookID, requestID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.books[bookID]
	if !ok {
		return errs.ErrNotFound
	}
	row.b.ExchangeRequests = append(row.b.ExchangeRequests, requestID)
	row.b.UpdatedAt = r.s.now()
	r.s.books[bookID] = row
	return nil
}

// Delete removes a book and returns its last state.
func (r *BookRepo) Delete(_ context.Context, id uuid.UUID) (*model.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.books[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	delete(r.s.books, id)
	b := cloneBook(row.b)
	return &b, nil
}

// ExchangeRepo implements ExchangeRepository on a Store.
type ExchangeRepo struct{ s *Store }

// NewExchangeRepo constructs an exchange request repository.
func NewExchangeRepo(s *Store) *ExchangeRepo { return &ExchangeRepo{s: s} }

// Create inserts a request and fills its timestamps.
func (r *ExchangeRepo) Create(_ context.Context, er *model.ExchangeRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.exchanges[er.ID]; ok {
		return errs.ErrAlreadyExists
	}
	now := r.s.now()
	er.CreatedAt, er.UpdatedAt = now, now
	r.s.exchanges[er.ID] = exchangeRow{seq: r.s.next(), er: *er}
	return nil
}

// GetByID returns a single request.
func (r *ExchangeRepo) GetByID(_ context.Context, id uuid.UUID) (*model.ExchangeRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.exchanges[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	er := row.er
	return &er, nil
}

// GetMany returns the requests among ids.
func (r *ExchangeRepo) GetMany(_ context.Context, ids []uuid.UUID) ([]model.ExchangeRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var rows []exchangeRow
	seen := map[uuid.UUID]bool{}
	for _, id := range ids {
		if row, ok := r.s.exchanges[id]; ok && !seen[id] {
			seen[id] = true
			rows = append(rows, row)
		}
	}
	return sortedExchanges(rows), nil
}

// SetStatus overwrites the status regardless of the current one.
func (r *ExchangeRepo) SetStatus(_ context.Context, id uuid.UUID, status model.ExchangeStatus) (*model.ExchangeRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.exchanges[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	row.er.Status = status
	row.er.UpdatedAt = r.s.now()
	r.s.exchanges[id] = row
	er := row.er
	return &er, nil
}

// CancelForBook cancels every request that references bookID on either side.
func (r *ExchangeRepo) CancelForBook(_ context.Context, bookID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	now := r.s.now()
	for id, row := range r.s.exchanges {
		if row.er.RequestedBookID == bookID || row.er.OfferedBookID == bookID {
			row.er.Status = model.StatusCancelled
			row.er.UpdatedAt = now
			r.s.exchanges[id] = row
			n++
		}
	}
	return n, nil
}

// ListByRequester returns requests sent by userID.
func (r *ExchangeRepo) ListByRequester(_ context.Context, userID uuid.UUID) ([]model.ExchangeRequest, error) {
	return r.filter(func(er model.ExchangeRequest) bool { return er.RequesterID == userID }), nil
}

// ListByRequestedBooks returns requests targeting any of bookIDs.
func (r *ExchangeRepo) ListByRequestedBooks(_ context.Context, bookIDs []uuid.UUID) ([]model.ExchangeRequest, error) {
	want := make(map[uuid.UUID]bool, len(bookIDs))
	for _, id := range bookIDs {
		want[id] = true
	}
	return r.filter(func(er model.ExchangeRequest) bool { return want[er.RequestedBookID] }), nil
}

func (r *ExchangeRepo) filter(keep func(model.ExchangeRequest) bool) []model.ExchangeRequest {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var rows []exchangeRow
	for _, row := range r.s.exchanges {
		if keep(row.er) {
			rows = append(rows, row)
		}
	}
	return sortedExchanges(rows)
}
