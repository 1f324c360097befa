package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"movie-recommender/internal/domain"
	"movie-recommender/internal/repository"
)

const (
	DefaultTopK = 5

	breakerName = "gemini-generate"
)

type RecommenderConfig struct {
	TopK             int
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Interval         time.Duration
	// OnStateChange, when set, is told about every breaker transition.
	OnStateChange func(name, from, to string)
}

type RecommendInput struct {
	Query          string
	UserEmail      string
	ConversationID string
}

// Recommender builds a prompt from the nearest movies and the prior turns of
// a conversation and asks the generation model for one recommendation.
type Recommender struct {
	searcher  Searcher
	generator Generator
	convos    ConversationStore
	topK      int
	breaker   *gobreaker.CircuitBreaker[string]
}

// NewRecommender requires a generator. A nil searcher means no movie context;
// a nil conversation store means no history.
func NewRecommender(searcher Searcher, generator Generator, convos ConversationStore, cfg RecommenderConfig) (*Recommender, error) {
	if generator == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	threshold := cfg.FailureThreshold
	onChange := cfg.OnStateChange
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if onChange != nil {
				onChange(name, from.String(), to.String())
			}
		},
	})
	return &Recommender{
		searcher:  searcher,
		generator: generator,
		convos:    convos,
		topK:      cfg.TopK,
		breaker:   breaker,
	}, nil
}

// Recommend returns the model's raw reply. Search and history failures only
// shrink the prompt; a generation failure is returned as ErrorUpstream.
func (r *Recommender) Recommend(ctx context.Context, in RecommendInput) (string, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return "", newError(ErrorInvalidInput, "query is required", nil)
	}

	hits := r.nearest(ctx, query)
	prompt := buildRecommendationPrompt(query, r.history(ctx, in.UserEmail, in.ConversationID), hits)

	reply, err := r.breaker.Execute(func() (string, error) {
		return r.generator.Generate(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", newError(ErrorUpstream, "generation_unavailable", err)
		}
		return "", newError(ErrorUpstream, "generation_failed", err)
	}
	return reply, nil
}

func (r *Recommender) nearest(ctx context.Context, query string) []domain.MovieHit {
	if r.searcher == nil {
		return nil
	}
	hits, err := r.searcher.NearestK(ctx, query, r.topK)
	if err != nil {
		slog.Warn("vector search failed, continuing without context", "err", err)
		return nil
	}
	if len(hits) > r.topK {
		hits = hits[:r.topK]
	}
	return hits
}

func (r *Recommender) history(ctx context.Context, email, convoID string) string {
	email, convoID = strings.TrimSpace(email), strings.TrimSpace(convoID)
	if email == "" || convoID == "" {
		return ""
	}
	if r.convos == nil || !repository.IsValidID(convoID) {
		return noPreviousConversation
	}
	c := r.convos.FindOne(ctx, repository.ConversationFilter{ID: convoID, UserEmail: email})
	if c == nil {
		return noPreviousConversation
	}
	return serializeHistory(c.Messages)
}
