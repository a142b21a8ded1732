package api

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageturnapp/pageturn-server/internal/auth"
	"github.com/pageturnapp/pageturn-server/internal/domain"
	"github.com/pageturnapp/pageturn-server/internal/http/response"
	"github.com/pageturnapp/pageturn-server/internal/id"
	"github.com/pageturnapp/pageturn-server/internal/mail"
	"github.com/pageturnapp/pageturn-server/internal/ratelimit"
	"github.com/pageturnapp/pageturn-server/internal/service"
	"github.com/pageturnapp/pageturn-server/internal/store/sqlite"
	"github.com/pageturnapp/pageturn-server/internal/validation"
)

var testTokenKey = []byte("test-secret-key-for-testing-32b!")

// testServer bundles the HTTP server with the dependencies tests need
// to seed data and mint tokens.
type testServer struct {
	server *Server
	store  *sqlite.Store
	tokens *auth.TokenService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := sqlite.Open(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tokens, err := auth.NewTokenService(testTokenKey, 15*time.Minute)
	require.NoError(t, err)

	validator := validation.New()
	mailer := mail.New(mail.Config{Enabled: false}, logger)

	authService := service.NewAuthService(store, tokens, validator, mailer, 48*time.Hour, logger)
	bookService := service.NewBookService(store, validator, logger)
	readingService := service.NewReadingService(store, logger)
	statsService := service.NewStatsService(store, logger)
	commentService := service.NewCommentService(store, validator, logger)

	// Generous limits so tests never trip the auth rate limiter
	limiter := ratelimit.New(1000, 1000)
	t.Cleanup(limiter.Stop)

	server := NewServer(
		authService,
		bookService,
		readingService,
		statsService,
		commentService,
		limiter,
		"http://localhost:3000",
		logger,
	)

	return &testServer{server: server, store: store, tokens: tokens}
}

// do performs a request against the test server. A non-empty token is
// sent as a Bearer credential.
func (ts *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()

	var envelope response.Envelope
	err := json.Unmarshal(w.Body.Bytes(), &envelope)
	require.NoError(t, err)
	return envelope
}

// seedActiveUser creates an activated user and returns it with a valid
// access token.
func (ts *testServer) seedActiveUser(t *testing.T, email string) (*domain.User, string) {
	t.Helper()

	now := time.Now().UTC()
	hash, err := auth.HashPassword("testpass123")
	require.NoError(t, err)

	user := &domain.User{
		ID:           id.MustGenerate("user"),
		Email:        email,
		Name:         "Test Reader",
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = ts.store.CreateUser(context.Background(), user, domain.NewProfile(user.ID, now))
	require.NoError(t, err)

	token, err := ts.tokens.GenerateAccessToken(user)
	require.NoError(t, err)

	return user, token
}

func (ts *testServer) seedBook(t *testing.T, title string) *domain.Book {
	t.Helper()

	now := time.Now().UTC()
	book := &domain.Book{
		ID:               id.MustGenerate("book"),
		Title:            title,
		Author:           "Test Author",
		Published:        "2024",
		ShortDescription: "short",
		Text:             "full text",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := ts.store.CreateBook(context.Background(), book)
	require.NoError(t, err)
	return book
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	assert.True(t, envelope.Success)

	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "healthy", data["status"])
}

func TestRequireAuth_MissingToken(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/users/me", nil, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "not-a-bearer-token")

	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_GarbageToken(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/users/me", nil, "v4.local.garbage")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterActivateLoginFlow(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	w := ts.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "reader@example.com",
		"password": "supersecret1",
		"name":     "New Reader",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Login is rejected until the account is activated
	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "reader@example.com",
		"password": "supersecret1",
	}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Activation tokens are delivered by email; fetch it from the store
	user, err := ts.store.GetUserByEmail(ctx, "reader@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, user.ActivationToken)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/activate", map[string]string{
		"token": user.ActivationToken,
	}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "reader@example.com",
		"password": "supersecret1",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	envelope := decodeEnvelope(t, w)
	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	accessToken, _ := data["access_token"].(string)
	require.NotEmpty(t, accessToken)

	// The issued token works against protected endpoints
	w = ts.do(t, http.MethodGet, "/api/v1/users/me", nil, accessToken)
	assert.Equal(t, http.StatusOK, w.Code)

	envelope = decodeEnvelope(t, w)
	me, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "reader@example.com", me["email"])
}

func TestRegister_InvalidPayload(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"email":    "not-an-email",
		"password": "short",
		"name":     "x",
	}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	envelope := decodeEnvelope(t, w)
	assert.False(t, envelope.Success)
	assert.NotNil(t, envelope.Details)
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.seedActiveUser(t, "reader@example.com")

	w := ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "reader@example.com",
		"password": "wrong-password",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStartStopReading(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.seedActiveUser(t, "reader@example.com")
	book := ts.seedBook(t, "The Glass Orchard")

	w := ts.do(t, http.MethodPost, "/api/v1/books/"+book.ID+"/start-reading", nil, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	envelope := decodeEnvelope(t, w)
	session, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, book.ID, session["book_id"])
	assert.Nil(t, session["stop_reading"])

	// Starting the same book again conflicts
	w = ts.do(t, http.MethodPost, "/api/v1/books/"+book.ID+"/start-reading", nil, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	envelope = decodeEnvelope(t, w)
	assert.Equal(t, "Active reading session already exists", envelope.Error)

	w = ts.do(t, http.MethodPut, "/api/v1/books/"+book.ID+"/stop-reading", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	envelope = decodeEnvelope(t, w)
	session, ok = envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.NotNil(t, session["stop_reading"])

	// Stopping again is a validation error, not idempotent success
	w = ts.do(t, http.MethodPut, "/api/v1/books/"+book.ID+"/stop-reading", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	envelope = decodeEnvelope(t, w)
	assert.Equal(t, "Session is not active", envelope.Error)
}

func TestStartReading_SwitchingBooksClosesPrevious(t *testing.T) {
	ts := newTestServer(t)
	user, token := ts.seedActiveUser(t, "reader@example.com")
	first := ts.seedBook(t, "First Book")
	second := ts.seedBook(t, "Second Book")

	w := ts.do(t, http.MethodPost, "/api/v1/books/"+first.ID+"/start-reading", nil, token)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/books/"+second.ID+"/start-reading", nil, token)
	require.Equal(t, http.StatusCreated, w.Code)

	// The session on the first book was auto-closed
	last, err := ts.store.GetLastReadingSession(context.Background(), user.ID, first.ID)
	require.NoError(t, err)
	assert.NotNil(t, last.StoppedAt)

	open, err := ts.store.GetOpenSession(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, second.ID, open.BookID)
}

func TestStartReading_UnknownBook(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.seedActiveUser(t, "reader@example.com")

	w := ts.do(t, http.MethodPost, "/api/v1/books/book-missing/start-reading", nil, token)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListBooks_Public(t *testing.T) {
	ts := newTestServer(t)
	ts.seedBook(t, "Public Book")

	w := ts.do(t, http.MethodGet, "/api/v1/books/", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	items, ok := envelope.Data.([]any)
	require.True(t, ok)
	require.Len(t, items, 1)

	book, ok := items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Public Book", book["title"])
	// Listing never carries the full text
	assert.NotContains(t, book, "text")
}

func TestCreateBook_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/books/", map[string]any{
		"title":             "New Book",
		"author":            "A",
		"published":         "2024",
		"short_description": "s",
		"text":              "t",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReadingStatistic(t *testing.T) {
	ts := newTestServer(t)
	user, token := ts.seedActiveUser(t, "reader@example.com")
	book := ts.seedBook(t, "Counted Book")

	// A finished hour-long session recorded directly in the store
	start := time.Now().UTC().Add(-2 * time.Hour)
	session := domain.NewReadingSession(id.MustGenerate("rs"), user.ID, book.ID, start)
	_, err := ts.store.StartReadingSession(context.Background(), session)
	require.NoError(t, err)
	err = ts.store.CloseReadingSession(context.Background(), session.ID, start.Add(time.Hour))
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/api/v1/books/"+book.ID+"/statistic", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3600), data["total_reading_seconds"])
}

func TestGetBook_LastReadingIsLastFinishedStop(t *testing.T) {
	ts := newTestServer(t)
	user, token := ts.seedActiveUser(t, "reader@example.com")
	book := ts.seedBook(t, "Returning Book")

	// One finished session, then a newer one still in progress. The
	// detail view reports the finished stop time, not the open session.
	start := time.Now().UTC().Add(-2 * time.Hour)
	stop := start.Add(30 * time.Minute)
	finished := domain.NewReadingSession(id.MustGenerate("rs"), user.ID, book.ID, start)
	_, err := ts.store.StartReadingSession(context.Background(), finished)
	require.NoError(t, err)
	err = ts.store.CloseReadingSession(context.Background(), finished.ID, stop)
	require.NoError(t, err)

	open := domain.NewReadingSession(id.MustGenerate("rs"), user.ID, book.ID, start.Add(time.Hour))
	_, err = ts.store.StartReadingSession(context.Background(), open)
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/api/v1/books/"+book.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	detail, ok := envelope.Data.(map[string]any)
	require.True(t, ok)

	got, ok := detail["last_reading"].(string)
	require.True(t, ok, "last_reading should be a timestamp, got %v", detail["last_reading"])
	parsed, err := time.Parse(time.RFC3339Nano, got)
	require.NoError(t, err)
	assert.WithinDuration(t, stop, parsed, time.Second)
}

func TestGetBook_LastReadingNullWithoutHistory(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.seedActiveUser(t, "reader@example.com")
	book := ts.seedBook(t, "Untouched Book")

	// Anonymous request
	w := ts.do(t, http.MethodGet, "/api/v1/books/"+book.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	detail, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	require.Contains(t, detail, "last_reading")
	assert.Nil(t, detail["last_reading"])

	// Authenticated but never finished a session on the book
	w = ts.do(t, http.MethodPost, "/api/v1/books/"+book.ID+"/start-reading", nil, token)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/books/"+book.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	envelope = decodeEnvelope(t, w)
	detail, ok = envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Nil(t, detail["last_reading"])
}

func TestReadingHistory(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.seedActiveUser(t, "reader@example.com")
	book := ts.seedBook(t, "Well Read Book")
	other := ts.seedBook(t, "Other Book")

	w := ts.do(t, http.MethodGet, "/api/v1/books/"+book.ID+"/reading-history", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	sessions, ok := envelope.Data.([]any)
	require.True(t, ok)
	assert.Empty(t, sessions)

	// Two sessions on the book, one on another book
	w = ts.do(t, http.MethodPost, "/api/v1/books/"+book.ID+"/start-reading", nil, token)
	require.Equal(t, http.StatusCreated, w.Code)
	w = ts.do(t, http.MethodPut, "/api/v1/books/"+book.ID+"/stop-reading", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodPost, "/api/v1/books/"+book.ID+"/start-reading", nil, token)
	require.Equal(t, http.StatusCreated, w.Code)
	w = ts.do(t, http.MethodPost, "/api/v1/books/"+other.ID+"/start-reading", nil, token)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/books/"+book.ID+"/reading-history", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	envelope = decodeEnvelope(t, w)
	sessions, ok = envelope.Data.([]any)
	require.True(t, ok)
	require.Len(t, sessions, 2)
	for _, raw := range sessions {
		session, ok := raw.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, book.ID, session["book_id"])
	}
}

func TestReadingHistory_RequiresAuth(t *testing.T) {
	ts := newTestServer(t)
	book := ts.seedBook(t, "Private History")

	w := ts.do(t, http.MethodGet, "/api/v1/books/"+book.ID+"/reading-history", nil, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
