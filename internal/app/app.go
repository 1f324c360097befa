// Package app wires configuration, clients and services into the HTTP
// handler shared by the server and Lambda binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"movie-recommender/internal/api"
	"movie-recommender/internal/auth"
	"movie-recommender/internal/config"
	"movie-recommender/internal/integrations/gemini"
	"movie-recommender/internal/integrations/milvus"
	"movie-recommender/internal/integrations/paramstore"
	"movie-recommender/internal/integrations/weaviate"
	"movie-recommender/internal/metrics"
	"movie-recommender/internal/repository"
	"movie-recommender/internal/usecase"
)

// App is a fully wired service.
type App struct {
	Handler http.Handler
	Metrics *metrics.Metrics

	closers []func(context.Context) error
}

// Close releases the store and vector index connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}

var (
	loadAWSConfig = func(ctx context.Context) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	}
	newParamGetter = func(cfg aws.Config) (paramstore.Getter, error) {
		return paramstore.New(awsssm.NewFromConfig(cfg))
	}
)

type builder struct {
	cfg     *config.Config
	awsOnce func() (aws.Config, error)
	params  paramstore.Getter
}

// Build creates every client once and injects them into the services.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	b := &builder{
		cfg:     cfg,
		awsOnce: sync.OnceValues(func() (aws.Config, error) { return loadAWSConfig(ctx) }),
	}
	a := &App{Metrics: metrics.New()}

	if cfg.Secrets.ParamPrefix != "" {
		awsCfg, err := b.awsOnce()
		if err != nil {
			return nil, fmt.Errorf("app: load aws config: %w", err)
		}
		if b.params, err = newParamGetter(awsCfg); err != nil {
			return nil, fmt.Errorf("app: parameter store: %w", err)
		}
	}

	jwtSecret, err := b.jwtSecret(ctx)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer(jwtSecret, cfg.Auth.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("app: token issuer: %w", err)
	}

	backend, err := b.storeBackend(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, backend.Close)
	store := repository.NewStore(backend, repository.WithErrorObserver(a.Metrics.StoreError))

	generator := b.gemini()
	searcher, closeSearcher, err := b.searcher(ctx, generator)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if closeSearcher != nil {
		a.closers = append(a.closers, closeSearcher)
	}

	var recommender usecase.RecommendationSource
	if generator != nil {
		rec, err := usecase.NewRecommender(searcher, generator, store.Conversations, usecase.RecommenderConfig{
			TopK:             cfg.Vector.TopK,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			OpenTimeout:      cfg.Breaker.OpenTimeout,
			Interval:         cfg.Breaker.Interval,
			OnStateChange:    a.Metrics.BreakerTransition,
		})
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("app: recommender: %w", err)
		}
		recommender = rec
	} else {
		slog.Warn("no gemini key configured, chat replies use the fallback text")
	}

	accounts, err := usecase.NewAccountService(store.Users, tokens)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	movies, err := usecase.NewMovieService(store.Movies)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	chat, err := usecase.NewChatService(store.Conversations, recommender, a.Metrics.ChatReply)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.Handler, err = api.NewRouter(api.Deps{
		Accounts: accounts,
		Movies:   movies,
		Chat:     chat,
		Metrics:  a.Metrics,
	}, api.Options{
		CORSOrigins:      cfg.Security.CORSOrigins,
		LoginRateLimit:   cfg.Security.LoginRateLimit,
		LoginRateWindow:  cfg.Security.LoginRateWindow,
		RateLimitEnabled: cfg.Security.RateLimitEnabled,
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	slog.Info("application wired",
		"store", cfg.Store.Backend,
		"vector", cfg.Vector.Backend,
		"generation", generator != nil,
		"ssm_secrets", b.params != nil,
	)
	return a, nil
}

func (b *builder) jwtSecret(ctx context.Context) (string, error) {
	if b.params == nil {
		return b.cfg.Auth.JWTSecret, nil
	}
	secret, err := paramstore.Token(ctx, b.params, paramstore.Name(b.cfg.Secrets.ParamPrefix, paramstore.JWTSecretParam))
	if err != nil {
		return "", fmt.Errorf("app: load jwt secret: %w", err)
	}
	return secret, nil
}

func (b *builder) storeBackend(ctx context.Context) (repository.Backend, error) {
	sc := b.cfg.Store
	switch sc.Backend {
	case config.StoreMongo:
		be, err := repository.NewMongoBackend(ctx, sc.MongoURI, sc.MongoDatabase, sc.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("app: mongo: %w", err)
		}
		return be, nil
	case config.StoreDynamoDB:
		awsCfg, err := b.awsOnce()
		if err != nil {
			return nil, fmt.Errorf("app: load aws config: %w", err)
		}
		be, err := repository.NewDynamoBackend(awsdynamodb.NewFromConfig(awsCfg), sc.DynamoPrefix)
		if err != nil {
			return nil, fmt.Errorf("app: dynamodb: %w", err)
		}
		return be, nil
	case config.StoreMemory:
		slog.Warn("using the in-memory store, data is lost on restart")
		return repository.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("app: unknown store backend %q", sc.Backend)
	}
}

// gemini returns nil when no key source is configured.
func (b *builder) gemini() *gemini.Client {
	gc := b.cfg.Gemini
	opts := []gemini.Option{
		gemini.WithBaseURL(gc.BaseURL),
		gemini.WithModel(gc.Model),
		gemini.WithEmbeddingModel(gc.EmbeddingModel),
	}
	if gc.Timeout > 0 {
		opts = append(opts, gemini.WithHTTPClient(&http.Client{Timeout: gc.Timeout}))
	}
	switch {
	case b.params != nil:
		opts = append(opts, gemini.WithKeyParameter(b.params, paramstore.Name(b.cfg.Secrets.ParamPrefix, paramstore.GeminiTokenParam)))
	case gc.APIKey != "":
		opts = append(opts, gemini.WithAPIKey(gc.APIKey))
	default:
		return nil
	}
	c, err := gemini.NewClient(opts...)
	if err != nil {
		slog.Error("gemini client disabled", "err", err)
		return nil
	}
	return c
}

func (b *builder) searcher(ctx context.Context, gen *gemini.Client) (usecase.Searcher, func(context.Context) error, error) {
	vc := b.cfg.Vector
	switch vc.Backend {
	case config.VectorWeaviate:
		client, err := weaviate.NewClient(weaviate.Config{URL: vc.WeaviateURL, APIKey: vc.WeaviateAPIKey, Class: vc.WeaviateClass})
		if err != nil {
			return nil, nil, fmt.Errorf("app: %w", err)
		}
		s, err := weaviate.NewSearcher(client, vc.WeaviateClass)
		if err != nil {
			return nil, nil, fmt.Errorf("app: %w", err)
		}
		return s, nil, nil
	case config.VectorMilvus:
		if gen == nil {
			return nil, nil, errors.New("app: the milvus backend needs a gemini key to embed queries")
		}
		client, err := milvus.Dial(ctx, vc.MilvusAddress)
		if err != nil {
			return nil, nil, fmt.Errorf("app: %w", err)
		}
		s, err := milvus.NewSearcher(client, gen, vc.MilvusCollection, vc.MilvusVectorName)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("app: %w", err)
		}
		return s, func(context.Context) error { return client.Close() }, nil
	default:
		return nil, nil, nil
	}
}
