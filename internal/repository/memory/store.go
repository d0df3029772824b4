// Package memory contains in-process implementations of repository interfaces.
// They follow the PostgreSQL semantics (ordering, not-found mapping, uniqueness)
// and back the development server mode and HTTP tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bookswap/internal/model"
)

// Store is a process-local document store shared by the repositories built from it.
type Store struct {
	mu        sync.RWMutex
	seq       int64
	users     map[uuid.UUID]userRow
	books     map[uuid.UUID]bookRow
	exchanges map[uuid.UUID]exchangeRow

	now func() time.Time
}

type userRow struct {
	seq int64
	u   model.User
}

type bookRow struct {
	seq int64
	b   model.Book
}

type exchangeRow struct {
	seq int64
	er  model.ExchangeRequest
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:     map[uuid.UUID]userRow{},
		books:     map[uuid.UUID]bookRow{},
		exchanges: map[uuid.UUID]exchangeRow{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Close releases nothing; it exists so the store has the same lifecycle as the pool.
func (s *Store) Close() {}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

func cloneBook(b model.Book) model.Book {
	b.ExchangeRequests = append([]uuid.UUID{}, b.ExchangeRequests...)
	return b
}

func sortedBooks(rows []bookRow) []model.Book {
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]model.Book, 0, len(rows))
	for _, r := range rows {
		out = append(out, cloneBook(r.b))
	}
	return out
}

func sortedExchanges(rows []exchangeRow) []model.ExchangeRequest {
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]model.ExchangeRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.er)
	}
	return out
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
