package httpserver

import (
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bookswap/internal/model"
)

type createBookRequest struct {
	Title  string `json:"title" validate:"required,max=500"`
	Author string `json:"author" validate:"required,max=500"`
	Genre  string `json:"genre" validate:"required,max=200"`
	Owner  string `json:"owner" validate:"required,uuid"`
}

type updateBookRequest struct {
	Title       *string `json:"title" validate:"omitnil,max=500"`
	Author      *string `json:"author" validate:"omitnil,max=500"`
	Genre       *string `json:"genre" validate:"omitnil,max=200"`
	IsAvailable *bool   `json:"isAvailable"`
}

func (r updateBookRequest) patch() model.BookPatch {
	return model.BookPatch{Title: r.Title, Author: r.Author, Genre: r.Genre, IsAvailable: r.IsAvailable}
}

type proposeRequest struct {
	RequesterID     string `json:"requesterId" validate:"required,uuid"`
	RequestedBookID string `json:"requestedBookId" validate:"required,uuid"`
	OfferedBookID   string `json:"offeredBookId" validate:"required,uuid"`
}

type resolveRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}

type exchangeResponse struct {
	Message         string                 `json:"message"`
	ExchangeRequest *model.ExchangeRequest `json:"exchangeRequest"`
}

type deleteResponse struct {
	Message     string      `json:"message"`
	DeletedBook *model.Book `json:"deletedBook"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
}

// registeredUser is the stored user as returned by registration, hash included.
type registeredUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
