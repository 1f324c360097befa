// Package weaviate queries and seeds the movie class of a Weaviate index.
package weaviate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	wv "github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"movie-recommender/internal/domain"
)

const (
	DefaultClass = "Movies"

	propTitle       = "title"
	propDescription = "description"
)

// nearTextFunc runs a nearText Get query for class and returns the raw response.
type nearTextFunc func(ctx context.Context, class, query string, limit int) (*models.GraphQLResponse, error)

// Searcher returns the movies closest to a free-text query.
type Searcher struct {
	class    string
	nearText nearTextFunc
}

// Config describes how to reach the index.
type Config struct {
	URL    string
	APIKey string
	Class  string
	// Headers are forwarded to Weaviate, e.g. vectorizer module API keys.
	Headers map[string]string
}

// NewClient builds a Weaviate client from cfg.URL ("http://host:port").
func NewClient(cfg Config) (*wv.Client, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("weaviate: invalid url %q", cfg.URL)
	}
	wcfg := wv.Config{Host: u.Host, Scheme: u.Scheme, Headers: cfg.Headers}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	c, err := wv.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("weaviate: new client: %w", err)
	}
	return c, nil
}

// NewSearcher returns a Searcher over client for class.
func NewSearcher(client *wv.Client, class string) (*Searcher, error) {
	if client == nil {
		return nil, errors.New("weaviate: client must not be nil")
	}
	if strings.TrimSpace(class) == "" {
		class = DefaultClass
	}
	return &Searcher{class: class, nearText: graphQLNearText(client)}, nil
}

func graphQLNearText(client *wv.Client) nearTextFunc {
	return func(ctx context.Context, class, query string, limit int) (*models.GraphQLResponse, error) {
		nearText := client.GraphQL().NearTextArgBuilder().WithConcepts([]string{query})
		return client.GraphQL().Get().
			WithClassName(class).
			WithFields(graphql.Field{Name: propTitle}, graphql.Field{Name: propDescription}).
			WithNearText(nearText).
			WithLimit(limit).
			Do(ctx)
	}
}

// NearestK returns at most k movies ordered by decreasing similarity.
func (s *Searcher) NearestK(ctx context.Context, query string, k int) ([]domain.MovieHit, error) {
	if k <= 0 {
		return []domain.MovieHit{}, nil
	}
	resp, err := s.nearText(ctx, s.class, query, k)
	if err != nil {
		return nil, fmt.Errorf("weaviate: near text: %w", err)
	}
	hits, err := parseHits(resp, s.class)
	if err != nil {
		return nil, err
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// parseHits extracts Get.<class>[] {title, description} from resp.
func parseHits(resp *models.GraphQLResponse, class string) ([]domain.MovieHit, error) {
	if resp == nil {
		return []domain.MovieHit{}, nil
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
		return nil, fmt.Errorf("weaviate: graphql: %s", strings.Join(msgs, "; "))
	}

	get, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return []domain.MovieHit{}, nil
	}
	rows, ok := get[class].([]any)
	if !ok {
		return []domain.MovieHit{}, nil
	}

	hits := make([]domain.MovieHit, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			continue
		}
		title, _ := obj[propTitle].(string)
		desc, _ := obj[propDescription].(string)
		hits = append(hits, domain.MovieHit{Title: title, Description: desc})
	}
	return hits, nil
}
