package httpserver

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/bookswap/internal/errs"
	"github.com/and161185/bookswap/internal/limiter"
	"github.com/and161185/bookswap/internal/model"
	"github.com/and161185/bookswap/internal/repository/memory"
	"github.com/and161185/bookswap/internal/service"
)

const testTTL = 72 * time.Hour

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store := memory.NewStore()
	users := memory.NewUserRepo(store)
	books := memory.NewBookRepo(store)
	exchanges := memory.NewExchangeRepo(store)
	log := zaptest.NewLogger(t)

	dir := service.NewUserDirectory(users)
	auth := service.NewAuthService(users, []byte("test-secret"), testTTL, limiter.NewMemory(limiter.DefaultPolicy), log)
	catalog := service.NewCatalog(books, exchanges, dir, log)
	coord := service.NewCoordinator(books, exchanges, dir, log)

	return New(NewHandler(auth, catalog, coord, log, Options{
		CORSOrigins: []string{"http://localhost:5173"},
		SessionTTL:  testTTL,
	}))
}

func do(t *testing.T, app *fiber.App, method, path string, body any, cookies ...*http.Cookie) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func register(t *testing.T, app *fiber.App, email, name string) uuid.UUID {
	t.Helper()
	resp, raw := do(t, app, http.MethodPost, "/api/user/auth/register",
		map[string]string{"email": email, "password": "pw1", "name": name})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	return decode[registeredUser](t, raw).ID
}

func createBook(t *testing.T, app *fiber.App, title string, owner uuid.UUID) model.Book {
	t.Helper()
	resp, raw := do(t, app, http.MethodPost, "/api/books", map[string]string{
		"title": title, "author": "author of " + title, "genre": "novel", "owner": owner.String(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	return decode[model.Book](t, raw)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	resp, raw := do(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", string(raw))
	require.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestExchangeFlow(t *testing.T) {
	app := newTestApp(t)
	alice := register(t, app, "a@x.com", "alice")
	bob := register(t, app, "b@x.com", "bob")

	a := createBook(t, app, "Dune", alice)
	b := createBook(t, app, "Emma", bob)
	require.True(t, a.IsAvailable)
	require.Empty(t, a.ExchangeRequests)

	resp, raw := do(t, app, http.MethodGet, "/api/books", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	avail := decode[[]model.Book](t, raw)
	require.Len(t, avail, 2)
	require.Equal(t, "alice", avail[0].Owner.Username)

	resp, raw = do(t, app, http.MethodPost, "/api/books/exchange", map[string]string{
		"requesterId": bob.String(), "requestedBookId": a.ID.String(), "offeredBookId": b.ID.String(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	created := decode[exchangeResponse](t, raw)
	require.Equal(t, model.StatusPending, created.ExchangeRequest.Status)
	reqID := created.ExchangeRequest.ID

	resp, raw = do(t, app, http.MethodGet, "/api/books/exchange-requests/"+a.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	views := decode[[]model.ExchangeView](t, raw)
	require.Len(t, views, 1)
	require.Equal(t, "bob", views[0].Requester.Username)
	require.Equal(t, "Emma", views[0].OfferedBook.Title)

	resp, raw = do(t, app, http.MethodGet, "/api/books/user-exchanges/"+alice.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ex := decode[model.UserExchanges](t, raw)
	require.Empty(t, ex.Sent)
	require.Len(t, ex.Received, 1)

	resp, raw = do(t, app, http.MethodPut, "/api/books/exchange/"+reqID.String(), map[string]string{"status": "accepted"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	resolved := decode[exchangeResponse](t, raw)
	require.Equal(t, "Exchange request accepted", resolved.Message)
	require.Equal(t, model.StatusAccepted, resolved.ExchangeRequest.Status)

	resp, raw = do(t, app, http.MethodGet, "/api/books/"+a.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	gotA := decode[model.Book](t, raw)
	require.Equal(t, bob, gotA.Owner.ID)
	require.Equal(t, "bob", gotA.Owner.Username)
	require.False(t, gotA.IsAvailable)
	require.Empty(t, gotA.ExchangeRequests)

	resp, raw = do(t, app, http.MethodGet, "/api/books/user/"+alice.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mine := decode[[]model.Book](t, raw)
	require.Len(t, mine, 1)
	require.Equal(t, b.ID, mine[0].ID)

	resp, raw = do(t, app, http.MethodGet, "/api/books", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, decode[[]model.Book](t, raw))

	// a second proposal on an unavailable book is refused
	c := createBook(t, app, "Ulysses", alice)
	resp, raw = do(t, app, http.MethodPost, "/api/books/exchange", map[string]string{
		"requesterId": alice.String(), "requestedBookId": a.ID.String(), "offeredBookId": c.ID.String(),
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, decode[messageResponse](t, raw).Message, "not available")
}

func TestUpdateAndDelete(t *testing.T) {
	app := newTestApp(t)
	alice := register(t, app, "a@x.com", "alice")
	bob := register(t, app, "b@x.com", "bob")
	a := createBook(t, app, "Dune", alice)
	b := createBook(t, app, "Emma", bob)

	resp, raw := do(t, app, http.MethodPut, "/api/books/"+a.ID.String(), map[string]any{"genre": "sci-fi"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	upd := decode[model.Book](t, raw)
	require.Equal(t, "sci-fi", upd.Genre)
	require.Equal(t, "Dune", upd.Title)
	require.True(t, upd.IsAvailable)

	resp, _ = do(t, app, http.MethodPut, "/api/books/"+a.ID.String(), map[string]any{"title": ""})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPut, "/api/books/"+uuid.Must(uuid.NewV4()).String(), map[string]any{"isAvailable": false})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = do(t, app, http.MethodPost, "/api/books/exchange", map[string]string{
		"requesterId": bob.String(), "requestedBookId": a.ID.String(), "offeredBookId": b.ID.String(),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	reqID := decode[exchangeResponse](t, raw).ExchangeRequest.ID

	resp, raw = do(t, app, http.MethodDelete, "/api/books/"+b.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	del := decode[deleteResponse](t, raw)
	require.Equal(t, "Book deleted successfully", del.Message)
	require.Equal(t, b.ID, del.DeletedBook.ID)

	resp, _ = do(t, app, http.MethodGet, "/api/books/"+b.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, app, http.MethodDelete, "/api/books/"+b.ID.String(), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = do(t, app, http.MethodGet, "/api/books/user-exchanges/"+bob.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ex := decode[model.UserExchanges](t, raw)
	require.Len(t, ex.Sent, 1)
	require.Equal(t, reqID, ex.Sent[0].ID)
	require.Equal(t, model.StatusCancelled, ex.Sent[0].Status)
	require.Equal(t, b.ID, ex.Sent[0].OfferedBook.ID)
	require.Empty(t, ex.Sent[0].OfferedBook.Title)
}

func TestBadRequests(t *testing.T) {
	app := newTestApp(t)
	alice := register(t, app, "a@x.com", "alice")
	a := createBook(t, app, "Dune", alice)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed book id", http.MethodGet, "/api/books/not-a-uuid", nil, http.StatusNotFound},
		{"unknown book", http.MethodGet, "/api/books/" + uuid.Must(uuid.NewV4()).String(), nil, http.StatusNotFound},
		{"create missing title", http.MethodPost, "/api/books", map[string]string{"author": "x", "genre": "g", "owner": alice.String()}, http.StatusBadRequest},
		{"create blank title", http.MethodPost, "/api/books", map[string]string{"title": "  ", "author": "x", "genre": "g", "owner": alice.String()}, http.StatusBadRequest},
		{"create bad owner", http.MethodPost, "/api/books", map[string]string{"title": "t", "author": "x", "genre": "g", "owner": "42"}, http.StatusBadRequest},
		{"invalid json", http.MethodPost, "/api/books", "{", http.StatusBadRequest},
		{"list by malformed user", http.MethodGet, "/api/books/user/nope", nil, http.StatusBadRequest},
		{"requests of unknown book", http.MethodGet, "/api/books/exchange-requests/" + uuid.Must(uuid.NewV4()).String(), nil, http.StatusNotFound},
		{"propose unknown book", http.MethodPost, "/api/books/exchange", map[string]string{
			"requesterId": alice.String(), "requestedBookId": uuid.Must(uuid.NewV4()).String(), "offeredBookId": a.ID.String(),
		}, http.StatusNotFound},
		{"propose missing field", http.MethodPost, "/api/books/exchange", map[string]string{"requesterId": alice.String()}, http.StatusBadRequest},
		{"resolve bad status", http.MethodPut, "/api/books/exchange/" + uuid.Must(uuid.NewV4()).String(), map[string]string{"status": "pending"}, http.StatusBadRequest},
		{"resolve unknown request", http.MethodPut, "/api/books/exchange/" + uuid.Must(uuid.NewV4()).String(), map[string]string{"status": "rejected"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, raw := do(t, app, tc.method, tc.path, tc.body)
			require.Equal(t, tc.want, resp.StatusCode, string(raw))
			require.NotEmpty(t, decode[messageResponse](t, raw).Message)
		})
	}
}

func TestAuthRoutes(t *testing.T) {
	app := newTestApp(t)

	resp, raw := do(t, app, http.MethodPost, "/api/user/auth/register",
		map[string]string{"email": "a@x.com", "password": "pw1", "name": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	reg := decode[registeredUser](t, raw)
	require.NotEmpty(t, reg.Password)
	require.NotEqual(t, "pw1", reg.Password)

	resp, _ = do(t, app, http.MethodPost, "/api/user/auth/register",
		map[string]string{"email": "a@x.com", "password": "pw2", "name": "again"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/api/user/auth/register",
		map[string]string{"email": "b@x.com", "password": "", "name": "bob"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = do(t, app, http.MethodPost, "/api/user/auth/login",
		map[string]string{"email": "a@x.com", "password": "pw1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.NotContains(t, string(raw), reg.Password)
	var token *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			token = c
		}
	}
	require.NotNil(t, token)
	require.True(t, token.HttpOnly)
	require.Equal(t, int(testTTL.Seconds()), token.MaxAge)

	resp, raw = do(t, app, http.MethodGet, "/api/user/auth/refetch", nil, &http.Cookie{Name: SessionCookie, Value: token.Value})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	claim := decode[model.Claim](t, raw)
	require.Equal(t, "a@x.com", claim.Email)
	require.Equal(t, "alice", claim.Name)
	require.Equal(t, reg.ID, claim.ID)

	resp, _ = do(t, app, http.MethodGet, "/api/user/auth/refetch", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, app, http.MethodGet, "/api/user/auth/refetch", nil, &http.Cookie{Name: SessionCookie, Value: "forged"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/api/user/auth/login",
		map[string]string{"email": "a@x.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, app, http.MethodPost, "/api/user/auth/login",
		map[string]string{"email": "nobody@x.com", "password": "pw1"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = do(t, app, http.MethodGet, "/api/user/auth/info/"+reg.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, string(raw), "password")
	require.Equal(t, "alice", decode[model.User](t, raw).Username)

	resp, _ = do(t, app, http.MethodGet, "/api/user/auth/info/"+uuid.Must(uuid.NewV4()).String(), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, "/api/user/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie && c.Value == "" {
			cleared = true
		}
	}
	require.True(t, cleared)
}

func TestLoginLockout(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "a@x.com", "alice")

	var last int
	for i := 0; i < limiter.DefaultPolicy.MaxFails; i++ {
		resp, _ := do(t, app, http.MethodPost, "/api/user/auth/login",
			map[string]string{"email": "a@x.com", "password": "wrong"})
		last = resp.StatusCode
	}
	require.Equal(t, http.StatusTooManyRequests, last)

	resp, _ := do(t, app, http.MethodPost, "/api/user/auth/login",
		map[string]string{"email": "a@x.com", "password": "pw1"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		errs.ErrValidation:    http.StatusBadRequest,
		errs.ErrInvalidState:  http.StatusBadRequest,
		errs.ErrUnauthorized:  http.StatusUnauthorized,
		errs.ErrNotFound:      http.StatusNotFound,
		errs.ErrAlreadyExists: http.StatusConflict,
		errs.ErrRateLimited:   http.StatusTooManyRequests,
		io.ErrUnexpectedEOF:   http.StatusInternalServerError,
		fiber.ErrTeapot:       http.StatusTeapot,
	}
	for err, want := range cases {
		require.Equal(t, want, statusFor(err), err.Error())
	}
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/books", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}
