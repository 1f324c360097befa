package weaviate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"

	"movie-recommender/internal/domain"
)

// ---------------------------------------------------------------------------
// Searcher
// ---------------------------------------------------------------------------

func graphQLResponse(rows ...map[string]any) *models.GraphQLResponse {
	list := make([]any, 0, len(rows))
	for _, r := range rows {
		list = append(list, r)
	}
	return &models.GraphQLResponse{Data: map[string]models.JSONObject{
		"Get": map[string]any{"Movies": list},
	}}
}

func TestNearestK_ParsesHitsInOrder(t *testing.T) {
	var gotClass, gotQuery string
	var gotLimit int
	s := &Searcher{class: "Movies", nearText: func(_ context.Context, class, query string, limit int) (*models.GraphQLResponse, error) {
		gotClass, gotQuery, gotLimit = class, query, limit
		return graphQLResponse(
			map[string]any{"title": "Heat", "description": "Cops and robbers."},
			map[string]any{"title": "Ronin", "description": "Car chases."},
		), nil
	}}

	hits, err := s.NearestK(context.Background(), "heist thriller", 5)
	require.NoError(t, err)
	require.Equal(t, []domain.MovieHit{
		{Title: "Heat", Description: "Cops and robbers."},
		{Title: "Ronin", Description: "Car chases."},
	}, hits)
	require.Equal(t, "Movies", gotClass)
	require.Equal(t, "heist thriller", gotQuery)
	require.Equal(t, 5, gotLimit)
}

func TestNearestK_TruncatesToK(t *testing.T) {
	s := &Searcher{class: "Movies", nearText: func(context.Context, string, string, int) (*models.GraphQLResponse, error) {
		return graphQLResponse(map[string]any{"title": "a"}, map[string]any{"title": "b"}, map[string]any{"title": "c"}), nil
	}}
	hits, err := s.NearestK(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestNearestK_ZeroK(t *testing.T) {
	s := &Searcher{class: "Movies", nearText: func(context.Context, string, string, int) (*models.GraphQLResponse, error) {
		t.Fatal("index must not be queried")
		return nil, nil
	}}
	hits, err := s.NearestK(context.Background(), "q", 0)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestNearestK_Errors(t *testing.T) {
	s := &Searcher{class: "Movies", nearText: func(context.Context, string, string, int) (*models.GraphQLResponse, error) {
		return nil, errors.New("connection refused")
	}}
	_, err := s.NearestK(context.Background(), "q", 5)
	require.ErrorContains(t, err, "connection refused")

	s.nearText = func(context.Context, string, string, int) (*models.GraphQLResponse, error) {
		return &models.GraphQLResponse{Errors: []*models.GraphQLError{{Message: "class not found"}}}, nil
	}
	_, err = s.NearestK(context.Background(), "q", 5)
	require.ErrorContains(t, err, "class not found")
}

func TestParseHits_UnexpectedShapes(t *testing.T) {
	cases := []*models.GraphQLResponse{
		nil,
		{},
		{Data: map[string]models.JSONObject{"Get": "nope"}},
		{Data: map[string]models.JSONObject{"Get": map[string]any{"Other": []any{}}}},
		{Data: map[string]models.JSONObject{"Get": map[string]any{"Movies": []any{"not-an-object"}}}},
	}
	for _, resp := range cases {
		hits, err := parseHits(resp, "Movies")
		require.NoError(t, err)
		require.Empty(t, hits)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(Config{URL: "::not a url"})
	require.Error(t, err)
	_, err = NewClient(Config{URL: ""})
	require.Error(t, err)
}

func TestNewClient_Valid(t *testing.T) {
	c, err := NewClient(Config{URL: "http://localhost:8080", APIKey: "k"})
	require.NoError(t, err)
	s, err := NewSearcher(c, "")
	require.NoError(t, err)
	require.Equal(t, DefaultClass, s.class)
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

type fakeSchema struct {
	exists    bool
	deleted   []string
	created   *models.Class
	batches   [][]*models.Object
	failFirst bool
	batchErr  error
}

func (f *fakeSchema) classExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeSchema) deleteClass(_ context.Context, class string) error {
	f.deleted = append(f.deleted, class)
	return nil
}

func (f *fakeSchema) createClass(_ context.Context, class *models.Class) error {
	f.created = class
	return nil
}

func (f *fakeSchema) batch(_ context.Context, objs []*models.Object) (int, error) {
	if f.batchErr != nil {
		return 0, f.batchErr
	}
	f.batches = append(f.batches, objs)
	if f.failFirst {
		return 1, nil
	}
	return 0, nil
}

func TestSeeder_RecreateDropsExistingClass(t *testing.T) {
	f := &fakeSchema{exists: true}
	s := newSeeder(f, "", "text2vec-openai", 0)

	require.NoError(t, s.Recreate(context.Background()))
	require.Equal(t, []string{"Movies"}, f.deleted)
	require.Equal(t, "Movies", f.created.Class)
	require.Equal(t, "text2vec-openai", f.created.Vectorizer)
	require.Len(t, f.created.Properties, 2)
}

func TestSeeder_LoadBatches(t *testing.T) {
	f := &fakeSchema{failFirst: true}
	s := newSeeder(f, "Movies", "none", 2)

	movies := []domain.MovieHit{{Title: "a"}, {Title: "b"}, {Title: "c"}}
	n, err := s.Load(context.Background(), movies)
	require.NoError(t, err)
	require.Len(t, f.batches, 2)
	require.Len(t, f.batches[0], 2)
	require.Len(t, f.batches[1], 1)
	require.Equal(t, "c", f.batches[1][0].Properties.(map[string]any)["title"])
	// One object per batch was rejected.
	require.Equal(t, 1, n)
}

func TestSeeder_LoadError(t *testing.T) {
	f := &fakeSchema{batchErr: errors.New("down")}
	s := newSeeder(f, "Movies", "none", 10)
	_, err := s.Load(context.Background(), []domain.MovieHit{{Title: "a"}})
	require.ErrorContains(t, err, "down")
}
