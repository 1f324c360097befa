// Package milvus answers nearest-movie queries from a Milvus collection of
// movie embeddings.
package milvus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"movie-recommender/internal/domain"
)

const (
	fieldTitle       = "title"
	fieldDescription = "description"
)

// searchAPI is the subset of client.Client used here.
type searchAPI interface {
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string,
		vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam,
		opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
}

// Embedder turns a query into a vector in the collection's embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher embeds the query and runs a COSINE search over the collection.
type Searcher struct {
	api         searchAPI
	embedder    Embedder
	collection  string
	vectorField string
	nprobe      int
}

// Dial connects to Milvus at addr.
func Dial(ctx context.Context, addr string) (client.Client, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("milvus: address must not be empty")
	}
	c, err := client.NewGrpcClient(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("milvus: connect %s: %w", addr, err)
	}
	return c, nil
}

func NewSearcher(api searchAPI, embedder Embedder, collection, vectorField string) (*Searcher, error) {
	if api == nil {
		return nil, errors.New("milvus: client must not be nil")
	}
	if embedder == nil {
		return nil, errors.New("milvus: embedder must not be nil")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("milvus: collection must not be empty")
	}
	if vectorField == "" {
		vectorField = "embedding"
	}
	return &Searcher{api: api, embedder: embedder, collection: collection, vectorField: vectorField, nprobe: 10}, nil
}

// NearestK returns at most k movies ordered by decreasing similarity.
func (s *Searcher) NearestK(ctx context.Context, query string, k int) ([]domain.MovieHit, error) {
	if k <= 0 {
		return []domain.MovieHit{}, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("milvus: embed query: %w", err)
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(s.nprobe)
	if err != nil {
		return nil, fmt.Errorf("milvus: search params: %w", err)
	}
	results, err := s.api.Search(ctx, s.collection, []string{}, "",
		[]string{fieldTitle, fieldDescription},
		[]entity.Vector{entity.FloatVector(vec)},
		s.vectorField, entity.COSINE, k, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus: search: %w", err)
	}

	hits := make([]domain.MovieHit, 0, k)
	for _, r := range results {
		titles, _ := r.Fields.GetColumn(fieldTitle).(*entity.ColumnVarChar)
		descs, _ := r.Fields.GetColumn(fieldDescription).(*entity.ColumnVarChar)
		if titles == nil {
			continue
		}
		for i, title := range titles.Data() {
			hit := domain.MovieHit{Title: title}
			if descs != nil && i < descs.Len() {
				hit.Description = descs.Data()[i]
			}
			hits = append(hits, hit)
		}
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
