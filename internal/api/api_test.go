package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"movie-recommender/internal/auth"
	"movie-recommender/internal/domain"
	"movie-recommender/internal/metrics"
	"movie-recommender/internal/repository"
	"movie-recommender/internal/usecase"
)

type stubRecommender struct {
	reply string
	err   error
}

func (s *stubRecommender) Recommend(context.Context, usecase.RecommendInput) (string, error) {
	return s.reply, s.err
}

type fixture struct {
	handler http.Handler
	store   *repository.Store
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, rec usecase.RecommendationSource, opts Options) fixture {
	t.Helper()
	store := repository.NewStore(repository.NewMemoryBackend())
	tokens, err := auth.NewTokenIssuer("test-secret", 24*time.Hour)
	require.NoError(t, err)
	accounts, err := usecase.NewAccountService(store.Users, tokens)
	require.NoError(t, err)
	movies, err := usecase.NewMovieService(store.Movies)
	require.NoError(t, err)
	m := metrics.New()
	chat, err := usecase.NewChatService(store.Conversations, rec, m.ChatReply)
	require.NoError(t, err)

	h, err := NewRouter(Deps{Accounts: accounts, Movies: movies, Chat: chat, Metrics: m}, opts)
	require.NoError(t, err)
	return fixture{handler: h, store: store, metrics: m}
}

func (f fixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireFailure(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	out := decode[errorResponse](t, rec)
	require.False(t, out.Success)
	require.Equal(t, code, out.ErrorCode)
	require.NotEmpty(t, out.Message)
	return out
}

func TestNewRouter_ValidatesDependencies(t *testing.T) {
	_, err := NewRouter(Deps{}, Options{})
	require.Error(t, err)
}

func TestAuthScenario(t *testing.T) {
	f := newFixture(t, nil, Options{})
	john := map[string]string{"fname": "John", "lname": "Doe", "email": "john@example.com", "password": "password123"}

	rec := f.do(t, http.MethodPost, "/api/auth/register", john)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/auth/register", john)
	requireFailure(t, rec, http.StatusConflict, "CONFLICT")

	rec = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "john@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[loginResponse](t, rec)
	require.True(t, login.Success)
	require.Equal(t, "john@example.com", login.UserEmail)
	require.Equal(t, userView{FName: "John", LName: "Doe", Email: "john@example.com"}, login.User)
	require.NotContains(t, rec.Body.String(), "password")

	rec = f.do(t, http.MethodGet, "/api/auth/verify", nil, "Authorization", "Bearer "+login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, verifyResponse{Success: true, Email: "john@example.com"}, decode[verifyResponse](t, rec))

	tampered := login.Token[:len(login.Token)-4] + "AAAA"
	if tampered == login.Token {
		tampered = login.Token[:len(login.Token)-4] + "BBBB"
	}
	rec = f.do(t, http.MethodGet, "/api/auth/verify", nil, "Authorization", "Bearer "+tampered)
	requireFailure(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")

	rec = f.do(t, http.MethodGet, "/api/auth/verify", nil)
	out := requireFailure(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
	require.Equal(t, "Token is missing", out.Message)

	rec = f.do(t, http.MethodGet, "/api/auth/verify", nil, "Authorization", "Bearer")
	out = requireFailure(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
	require.Equal(t, "Invalid token format", out.Message)

	rec = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "john@example.com", "password": "nope-nope"})
	requireFailure(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestRegister_BadBodies(t *testing.T) {
	f := newFixture(t, nil, Options{})

	out := requireFailure(t, f.do(t, http.MethodPost, "/api/auth/register", nil), http.StatusBadRequest, "INVALID_INPUT")
	require.Equal(t, "No data provided", out.Message)

	requireFailure(t, f.do(t, http.MethodPost, "/api/auth/register", "{not json"), http.StatusBadRequest, "INVALID_INPUT")

	out = requireFailure(t, f.do(t, http.MethodPost, "/api/auth/register",
		map[string]string{"fname": "A", "lname": "B", "email": "a@b.com", "password": "123"}),
		http.StatusBadRequest, "INVALID_INPUT")
	require.Equal(t, "password must be at least 6 characters", out.Message)
}

func TestMovieScenario(t *testing.T) {
	f := newFixture(t, nil, Options{})

	rec := f.do(t, http.MethodPost, "/api/movies/add", map[string]any{
		"movie_name":        "Inception",
		"movie_description": "Dreams within dreams",
		"user_email":        "a@b.com",
		"rating":            "7.5",
		"runtime":           148,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[addMovieResponse](t, rec)
	require.True(t, repository.IsValidID(added.MovieID))

	rec = f.do(t, http.MethodGet, "/api/movies/not-watched?user_email=a@b.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[movieListResponse](t, rec)
	require.Equal(t, 1, list.Count)
	require.Equal(t, added.MovieID, list.Movies[0].MovieID)
	require.Equal(t, added.MovieID, list.Movies[0].ID)
	require.Equal(t, 7.5, *list.Movies[0].Rating)

	rec = f.do(t, http.MethodGet, "/api/movies/watched?user_email=a@b.com", nil)
	require.Equal(t, 0, decode[movieListResponse](t, rec).Count)
	require.Contains(t, rec.Body.String(), `"movies":[]`)

	for _, bad := range []any{11, -1, "ten", true} {
		rec = f.do(t, http.MethodPut, "/api/movies/"+added.MovieID+"/rate", map[string]any{"user_email": "a@b.com", "rating": bad})
		requireFailure(t, rec, http.StatusBadRequest, "INVALID_INPUT")
	}
	for _, ok := range []any{0, 10, 9.5} {
		rec = f.do(t, http.MethodPut, "/api/movies/"+added.MovieID+"/rate", map[string]any{"user_email": "a@b.com", "rating": ok})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/movies/"+added.MovieID+"?user_email=a@b.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[movieResponse](t, rec)
	require.True(t, got.Movie.HasWatched)
	require.Equal(t, 9.5, *got.Movie.Rating)

	rec = f.do(t, http.MethodPut, "/api/movies/"+added.MovieID+"/rate", map[string]any{"rating": 5})
	out := requireFailure(t, rec, http.StatusBadRequest, "INVALID_INPUT")
	require.Equal(t, "user_email is required", out.Message)

	requireFailure(t, f.do(t, http.MethodGet, "/api/movies/"+added.MovieID+"?user_email=x@b.com", nil), http.StatusNotFound, "NOT_FOUND")
	requireFailure(t, f.do(t, http.MethodGet, "/api/movies/nope?user_email=a@b.com", nil), http.StatusBadRequest, "INVALID_ID")
	requireFailure(t, f.do(t, http.MethodGet, "/api/movies/watched", nil), http.StatusBadRequest, "INVALID_INPUT")

	rec = f.do(t, http.MethodDelete, "/api/movies/"+added.MovieID+"?user_email=a@b.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	requireFailure(t, f.do(t, http.MethodDelete, "/api/movies/"+added.MovieID+"?user_email=a@b.com", nil), http.StatusNotFound, "NOT_FOUND")
}

func TestChatScenario(t *testing.T) {
	f := newFixture(t, &stubRecommender{reply: "Movie Name: Heat"}, Options{})

	rec := f.do(t, http.MethodPost, "/api/chat/message", map[string]string{"user_email": "a@b.com", "message": "recommend a thriller"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[sendMessageResponse](t, rec)
	require.Equal(t, "Movie Name: Heat", first.Response)
	require.Equal(t, domain.SourceAI, first.Source)
	require.True(t, repository.IsValidID(first.ConvoID))

	rec = f.do(t, http.MethodPost, "/api/chat/message", map[string]string{"user_email": "a@b.com", "message": "another", "convo_id": first.ConvoID})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, first.ConvoID, decode[sendMessageResponse](t, rec).ConvoID)

	rec = f.do(t, http.MethodGet, "/api/chat/conversation/"+first.ConvoID+"?user_email=a@b.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	convo := decode[conversationResponse](t, rec)
	require.Equal(t, first.ConvoID, convo.Conversation.ConvoID)
	require.Len(t, convo.Conversation.Messages, 4)
	require.Equal(t, "recommend a thriller", convo.Conversation.Messages[0].Content)
	require.Equal(t, domain.RoleModel, convo.Conversation.Messages[3].Role)

	rec = f.do(t, http.MethodGet, "/api/chat/conversations?user_email=a@b.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[conversationListResponse](t, rec)
	require.Equal(t, 1, list.Count)
	require.Equal(t, first.ConvoID, list.Conversations[0].ConvoID)
	require.NotContains(t, rec.Body.String(), "messages")

	requireFailure(t, f.do(t, http.MethodGet, "/api/chat/conversation/"+first.ConvoID+"?user_email=x@b.com", nil), http.StatusNotFound, "NOT_FOUND")
	requireFailure(t, f.do(t, http.MethodGet, "/api/chat/conversation/zzz?user_email=a@b.com", nil), http.StatusBadRequest, "INVALID_ID")
	requireFailure(t, f.do(t, http.MethodGet, "/api/chat/conversations", nil), http.StatusBadRequest, "INVALID_INPUT")
	requireFailure(t, f.do(t, http.MethodPost, "/api/chat/message", map[string]string{"user_email": "a@b.com"}), http.StatusBadRequest, "INVALID_INPUT")
}

func TestChat_NonStringConvoIDStartsNewConversation(t *testing.T) {
	f := newFixture(t, &stubRecommender{reply: "Movie Name: Se7en"}, Options{})

	for _, body := range []string{
		`{"user_email":"a@b.com","message":"recommend a thriller","convo_id":12345}`,
		`{"user_email":"a@b.com","message":"recommend a thriller","convo_id":{"$oid":"x"}}`,
		`{"user_email":"a@b.com","message":"recommend a thriller","convo_id":null}`,
	} {
		rec := f.do(t, http.MethodPost, "/api/chat/message", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		out := decode[sendMessageResponse](t, rec)
		require.True(t, repository.IsValidID(out.ConvoID), body)
		require.Equal(t, "Movie Name: Se7en", out.Response)
	}

	rec := f.do(t, http.MethodGet, "/api/chat/conversations?user_email=a@b.com", nil)
	require.Equal(t, 3, decode[conversationListResponse](t, rec).Count)
}

func TestChat_MockFallbackIsCounted(t *testing.T) {
	f := newFixture(t, &stubRecommender{err: errors.New("gemini down")}, Options{})

	rec := f.do(t, http.MethodPost, "/api/chat/message", map[string]string{"user_email": "a@b.com", "message": "noir"})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[sendMessageResponse](t, rec)
	require.Equal(t, domain.SourceMock, out.Source)
	require.Equal(t, "I'd recommend checking out some action movies based on your interest in 'noir'", out.Response)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `movie_app_chat_replies_total{source="mock"} 1`)
	require.Contains(t, rec.Body.String(), `route="/api/chat/message"`)
}

func TestMetaRoutes(t *testing.T) {
	f := newFixture(t, nil, Options{})

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, healthResponse{Status: "healthy", Service: "movie-backend-api", Version: "1.0.0"}, decode[healthResponse](t, rec))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = f.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "POST /api/chat/message", decode[indexResponse](t, rec).Endpoints["chat"]["message"])

	requireFailure(t, f.do(t, http.MethodGet, "/api/nothing-here", nil), http.StatusNotFound, "NOT_FOUND")
	requireFailure(t, f.do(t, http.MethodDelete, "/api/auth/login", nil), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
}

func TestLoginRateLimit(t *testing.T) {
	f := newFixture(t, nil, Options{RateLimitEnabled: true, LoginRateLimit: 2, LoginRateWindow: time.Minute})
	body := map[string]string{"email": "a@b.com", "password": "whatever"}

	for range 2 {
		rec := f.do(t, http.MethodPost, "/api/auth/login", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	requireFailure(t, f.do(t, http.MethodPost, "/api/auth/login", body), http.StatusTooManyRequests, "RATE_LIMITED")

	// Other routes are not limited.
	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

type panickingChat struct{ Chat }

func (panickingChat) ListConversations(context.Context, string) ([]domain.ConversationSummary, error) {
	panic("boom")
}

func TestPanicBecomesEnvelope(t *testing.T) {
	store := repository.NewStore(repository.NewMemoryBackend())
	movies, err := usecase.NewMovieService(store.Movies)
	require.NoError(t, err)
	tokens, err := auth.NewTokenIssuer("s", time.Hour)
	require.NoError(t, err)
	accounts, err := usecase.NewAccountService(store.Users, tokens)
	require.NoError(t, err)
	h, err := NewRouter(Deps{Accounts: accounts, Movies: movies, Chat: panickingChat{}}, Options{})
	require.NoError(t, err)
	f := fixture{handler: h, store: store}

	requireFailure(t, f.do(t, http.MethodGet, "/api/chat/conversations?user_email=a@b.com", nil), http.StatusInternalServerError, "INTERNAL_ERROR")
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		raw     string
		want    *float64
		wantErr bool
	}{
		{raw: ``},
		{raw: `null`},
		{raw: `8`, want: ptr(8.0)},
		{raw: `"6.5"`, want: ptr(6.5)},
		{raw: `" 3 "`, want: ptr(3.0)},
		{raw: `"abc"`, wantErr: true},
		{raw: `true`, wantErr: true},
		{raw: `[1]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseRating(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func ptr[T any](v T) *T { return &v }
