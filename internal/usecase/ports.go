package usecase

import (
	"context"
	"strings"
	"time"

	"movie-recommender/internal/auth"
	"movie-recommender/internal/domain"
	"movie-recommender/internal/repository"
)

type UserStore interface {
	InsertOne(ctx context.Context, u domain.User) string
	FindOne(ctx context.Context, f repository.UserFilter) *domain.User
}

type MovieStore interface {
	InsertOne(ctx context.Context, m domain.Movie) string
	FindOne(ctx context.Context, f repository.MovieFilter) *domain.Movie
	Find(ctx context.Context, f repository.MovieFilter) []domain.Movie
	UpdateOne(ctx context.Context, f repository.MovieFilter, p repository.MoviePatch) bool
	DeleteOne(ctx context.Context, f repository.MovieFilter) bool
}

type ConversationStore interface {
	InsertOne(ctx context.Context, c domain.Conversation) string
	FindOne(ctx context.Context, f repository.ConversationFilter) *domain.Conversation
	FindByUser(ctx context.Context, email string) []domain.Conversation
	AppendExchange(ctx context.Context, id, owner string, updatedAt time.Time, msgs ...domain.Message) bool
}

type TokenService interface {
	Issue(email string) (string, error)
	Decode(token string) (*auth.Claims, bool)
}

// Searcher returns up to k movies similar to query, most similar first.
type Searcher interface {
	NearestK(ctx context.Context, query string, k int) ([]domain.MovieHit, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var now = func() time.Time {
	return time.Now().UTC()
}

func requireEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", newError(ErrorInvalidInput, "user_email parameter is required", nil)
	}
	return email, nil
}
