package weaviate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	wv "github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"movie-recommender/internal/domain"
)

// schemaAPI is the part of the Weaviate client the Seeder needs.
type schemaAPI interface {
	classExists(ctx context.Context, class string) (bool, error)
	deleteClass(ctx context.Context, class string) error
	createClass(ctx context.Context, class *models.Class) error
	// batch inserts objs and returns how many were rejected.
	batch(ctx context.Context, objs []*models.Object) (int, error)
}

// Seeder recreates the movie class and loads movies into it.
type Seeder struct {
	api        schemaAPI
	class      string
	vectorizer string
	batchSize  int
}

// NewSeeder returns a Seeder writing to class with the given vectorizer
// module (for example "text2vec-openai").
func NewSeeder(client *wv.Client, class, vectorizer string, batchSize int) (*Seeder, error) {
	if client == nil {
		return nil, errors.New("weaviate: client must not be nil")
	}
	return newSeeder(clientSchema{client}, class, vectorizer, batchSize), nil
}

func newSeeder(api schemaAPI, class, vectorizer string, batchSize int) *Seeder {
	if strings.TrimSpace(class) == "" {
		class = DefaultClass
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Seeder{api: api, class: class, vectorizer: vectorizer, batchSize: batchSize}
}

// Recreate drops the class if present and creates it with title and
// description text properties.
func (s *Seeder) Recreate(ctx context.Context) error {
	exists, err := s.api.classExists(ctx, s.class)
	if err != nil {
		return fmt.Errorf("weaviate: check class %s: %w", s.class, err)
	}
	if exists {
		if err := s.api.deleteClass(ctx, s.class); err != nil {
			return fmt.Errorf("weaviate: delete class %s: %w", s.class, err)
		}
	}
	class := &models.Class{
		Class:      s.class,
		Vectorizer: s.vectorizer,
		Properties: []*models.Property{
			{Name: propTitle, DataType: []string{"text"}},
			{Name: propDescription, DataType: []string{"text"}},
		},
	}
	if err := s.api.createClass(ctx, class); err != nil {
		return fmt.Errorf("weaviate: create class %s: %w", s.class, err)
	}
	return nil
}

// Load batch-inserts movies and returns how many were accepted.
func (s *Seeder) Load(ctx context.Context, movies []domain.MovieHit) (int, error) {
	loaded := 0
	for start := 0; start < len(movies); start += s.batchSize {
		end := min(start+s.batchSize, len(movies))
		objs := make([]*models.Object, 0, end-start)
		for _, m := range movies[start:end] {
			objs = append(objs, &models.Object{
				Class: s.class,
				Properties: map[string]any{
					propTitle:       m.Title,
					propDescription: m.Description,
				},
			})
		}
		failed, err := s.api.batch(ctx, objs)
		if err != nil {
			return loaded, fmt.Errorf("weaviate: batch %d-%d: %w", start, end, err)
		}
		loaded += len(objs) - failed
	}
	return loaded, nil
}

func countFailed(resp []models.ObjectsGetResponse) int {
	failed := 0
	for _, r := range resp {
		if r.Result != nil && r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			failed++
		}
	}
	return failed
}

type clientSchema struct {
	c *wv.Client
}

func (s clientSchema) classExists(ctx context.Context, class string) (bool, error) {
	return s.c.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
}

func (s clientSchema) deleteClass(ctx context.Context, class string) error {
	return s.c.Schema().ClassDeleter().WithClassName(class).Do(ctx)
}

func (s clientSchema) createClass(ctx context.Context, class *models.Class) error {
	return s.c.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (s clientSchema) batch(ctx context.Context, objs []*models.Object) (int, error) {
	resp, err := s.c.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx)
	if err != nil {
		return 0, err
	}
	return countFailed(resp), nil
}
