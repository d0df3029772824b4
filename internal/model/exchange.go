package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// ExchangeStatus is the state of an exchange request.
type ExchangeStatus string

const (
	StatusPending   ExchangeStatus = "pending"
	StatusAccepted  ExchangeStatus = "accepted"
	StatusRejected  ExchangeStatus = "rejected"
	StatusCancelled ExchangeStatus = "cancelled"
)

// Resolution reports whether s is a status a request can be resolved to.
func (s ExchangeStatus) Resolution() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Terminal reports whether no transition leaves s.
func (s ExchangeStatus) Terminal() bool {
	return s != StatusPending
}

// ExchangeRequest is a proposal to trade OfferedBook for RequestedBook.
type ExchangeRequest struct {
	ID              uuid.UUID      `json:"id"`
	RequesterID     uuid.UUID      `json:"requester"`
	RequestedBookID uuid.UUID      `json:"requestedBook"`
	OfferedBookID   uuid.UUID      `json:"offeredBook"`
	Status          ExchangeStatus `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// ExchangeView is an exchange request with its references populated for display.
type ExchangeView struct {
	ID            uuid.UUID      `json:"id"`
	Requester     UserRef        `json:"requester"`
	RequestedBook BookRef        `json:"requestedBook"`
	OfferedBook   BookRef        `json:"offeredBook"`
	Status        ExchangeStatus `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// UserExchanges partitions a user's requests into the ones they sent and the ones
// targeting books they currently own.
type UserExchanges struct {
	Sent     []ExchangeView `json:"sent"`
	Received []ExchangeView `json:"received"`
}

// SwapOwnership returns both books after an accepted exchange: owners swapped,
// pending request lists cleared and both taken off the market.
func SwapOwnership(requested, offered Book) (Book, Book) {
	requested.Owner, offered.Owner = UserRef{ID: offered.Owner.ID}, UserRef{ID: requested.Owner.ID}
	requested.ExchangeRequests = []uuid.UUID{}
	offered.ExchangeRequests = []uuid.UUID{}
	requested.IsAvailable = false
	offered.IsAvailable = false
	return requested, offered
}
