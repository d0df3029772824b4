package httpserver

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bookswap/internal/model"
)

// bind parses the JSON body into dst and validates its tags.
func (h *Handler) bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validate.Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// entityID parses a path parameter naming a single record; malformed ids cannot
// exist and are reported as not found.
func entityID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.FromString(c.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusNotFound, strings.TrimSuffix(param, "Id")+" not found")
	}
	return id, nil
}

// filterID parses a path parameter used to filter a list.
func filterID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.FromString(c.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "malformed "+param)
	}
	return id, nil
}

func (h *Handler) listAvailable(c *fiber.Ctx) error {
	books, err := h.catalog.ListAvailable(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(books)
}

func (h *Handler) createBook(c *fiber.Ctx) error {
	var req createBookRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	book, err := h.catalog.Create(c.UserContext(), model.NewBook{
		Title:   req.Title,
		Author:  req.Author,
		Genre:   req.Genre,
		OwnerID: uuid.FromStringOrNil(req.Owner),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(book)
}

func (h *Handler) listUserBooks(c *fiber.Ctx) error {
	owner, err := filterID(c, "userId")
	if err != nil {
		return err
	}
	books, err := h.catalog.ListByOwner(c.UserContext(), owner)
	if err != nil {
		return err
	}
	return c.JSON(books)
}

func (h *Handler) getBook(c *fiber.Ctx) error {
	id, err := entityID(c, "bookId")
	if err != nil {
		return err
	}
	book, err := h.catalog.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(book)
}

func (h *Handler) updateBook(c *fiber.Ctx) error {
	id, err := entityID(c, "bookId")
	if err != nil {
		return err
	}
	var req updateBookRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	book, err := h.catalog.Update(c.UserContext(), id, req.patch())
	if err != nil {
		return err
	}
	return c.JSON(book)
}

func (h *Handler) deleteBook(c *fiber.Ctx) error {
	id, err := entityID(c, "bookId")
	if err != nil {
		return err
	}
	book, err := h.catalog.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(deleteResponse{Message: "Book deleted successfully", DeletedBook: book})
}

func (h *Handler) proposeExchange(c *fiber.Ctx) error {
	var req proposeRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	er, err := h.exchange.Propose(c.UserContext(),
		uuid.FromStringOrNil(req.RequesterID),
		uuid.FromStringOrNil(req.RequestedBookID),
		uuid.FromStringOrNil(req.OfferedBookID),
	)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(exchangeResponse{
		Message:         "Exchange request created successfully",
		ExchangeRequest: er,
	})
}

func (h *Handler) listBookRequests(c *fiber.Ctx) error {
	id, err := entityID(c, "bookId")
	if err != nil {
		return err
	}
	views, err := h.exchange.ListForBook(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(views)
}

func (h *Handler) resolveExchange(c *fiber.Ctx) error {
	id, err := entityID(c, "requestId")
	if err != nil {
		return err
	}
	var req resolveRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	er, msg, err := h.exchange.Resolve(c.UserContext(), id, model.ExchangeStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(exchangeResponse{Message: msg, ExchangeRequest: er})
}

func (h *Handler) userExchanges(c *fiber.Ctx) error {
	user, err := filterID(c, "userId")
	if err != nil {
		return err
	}
	ex, err := h.exchange.ListUserExchanges(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(ex)
}
