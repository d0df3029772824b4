package httpserver

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// SessionCookie is the name of the httpOnly cookie carrying the session token.
const SessionCookie = "token"

func (h *Handler) register(c *fiber.Ctx) error {
	var req registerRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	u, err := h.auth.Register(c.UserContext(), req.Email, req.Password, req.Name)
	if err != nil {
		return err
	}
	return c.JSON(registeredUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Password:  u.PwdHash,
		CreatedAt: u.CreatedAt,
	})
}

func (h *Handler) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	sess, u, err := h.auth.Login(c.UserContext(), req.Email, req.Password, c.IP())
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(h.opts.SessionTTL.Seconds()),
		HTTPOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: h.sameSite(),
	})
	return c.JSON(u)
}

// sameSite allows cross-site cookies only over TLS.
func (h *Handler) sameSite() string {
	if h.opts.CookieSecure {
		return fiber.CookieSameSiteNoneMode
	}
	return fiber.CookieSameSiteLaxMode
}

func (h *Handler) logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: h.sameSite(),
	})
	return c.JSON(messageResponse{Message: "Logged out successfully"})
}

// refetch returns the claim of the current session; any failure is reported as 404.
func (h *Handler) refetch(c *fiber.Ctx) error {
	claim, err := h.auth.ParseSession(c.Cookies(SessionCookie))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "no active session")
	}
	return c.JSON(claim)
}

func (h *Handler) info(c *fiber.Ctx) error {
	id, err := entityID(c, "userId")
	if err != nil {
		return err
	}
	u, err := h.auth.Info(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(u)
}
