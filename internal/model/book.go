package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Book is a single listed copy owned by a user.
type Book struct {
	ID               uuid.UUID   `json:"id"`
	Title            string      `json:"title"`
	Author           string      `json:"author"`
	Genre            string      `json:"genre"`
	Owner            UserRef     `json:"owner"`
	IsAvailable      bool        `json:"isAvailable"`
	ExchangeRequests []uuid.UUID `json:"exchangeRequests"` // pending request ids, in proposal order
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// NewBook is a catalog insert intent.
type NewBook struct {
	Title   string
	Author  string
	Genre   string
	OwnerID uuid.UUID
}

// BookPatch is a partial update; nil fields are left untouched.
type BookPatch struct {
	Title       *string
	Author      *string
	Genre       *string
	IsAvailable *bool
}

// Empty reports whether the patch changes nothing.
func (p BookPatch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.Genre == nil && p.IsAvailable == nil
}

// Apply returns b with the patch fields applied.
func (p BookPatch) Apply(b Book) Book {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Genre != nil {
		b.Genre = *p.Genre
	}
	if p.IsAvailable != nil {
		b.IsAvailable = *p.IsAvailable
	}
	return b
}

// BookRef is a reference to a book, optionally populated with title and author.
type BookRef struct {
	ID     uuid.UUID `json:"id"`
	Title  string    `json:"title,omitempty"`
	Author string    `json:"author,omitempty"`
}
