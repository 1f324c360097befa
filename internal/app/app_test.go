package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/require"

	"movie-recommender/internal/config"
	"movie-recommender/internal/integrations/paramstore"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 5001, Environment: config.EnvTesting},
		Store:    config.StoreConfig{Backend: config.StoreMemory},
		Auth:     config.AuthConfig{JWTSecret: "test-secret", ExpirationHours: 24},
		Vector:   config.VectorConfig{Backend: config.VectorNone, TopK: 5},
		Breaker:  config.BreakerConfig{FailureThreshold: 3, OpenTimeout: time.Second},
		Security: config.SecurityConfig{CORSOrigins: []string{"http://localhost:8000"}},
	}
}

type fakeParams struct {
	vals  map[string]string
	names []string
}

func (f *fakeParams) GetParameter(_ context.Context, name string) (string, error) {
	f.names = append(f.names, name)
	v, ok := f.vals[name]
	if !ok {
		return "", errors.New("parameter not found")
	}
	return v, nil
}

func stubAWS(t *testing.T, params paramstore.Getter) {
	t.Helper()
	origLoad, origParams := loadAWSConfig, newParamGetter
	loadAWSConfig = func(context.Context) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	}
	newParamGetter = func(aws.Config) (paramstore.Getter, error) { return params, nil }
	t.Cleanup(func() { loadAWSConfig, newParamGetter = origLoad, origParams })
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuild_MemoryWithoutGeneration(t *testing.T) {
	a, err := Build(context.Background(), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close(context.Background())) })

	rec := serve(t, a.Handler, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, a.Handler, http.MethodPost, "/api/chat/message", `{"user_email":"a@b.com","message":"heist films"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"source":"mock"`)

	rec = serve(t, a.Handler, http.MethodGet, "/metrics", "")
	require.Contains(t, rec.Body.String(), `movie_app_chat_replies_total{source="mock"} 1`)
}

func TestBuild_SecretsFromParameterStore(t *testing.T) {
	params := &fakeParams{vals: map[string]string{
		"/movie-app/jwt-secret":   `{"token":"from-ssm"}`,
		"/movie-app/gemini-token": `{"token":"g-key"}`,
	}}
	stubAWS(t, params)

	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	cfg.Secrets.ParamPrefix = "/movie-app"

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, a.Handler)
	require.Equal(t, []string{"/movie-app/jwt-secret"}, params.names)
}

func TestBuild_MissingParameterFails(t *testing.T) {
	stubAWS(t, &fakeParams{})
	cfg := testConfig()
	cfg.Secrets.ParamPrefix = "/movie-app"

	_, err := Build(context.Background(), cfg)
	require.ErrorContains(t, err, "jwt secret")
}

func TestBuild_DynamoBackend(t *testing.T) {
	stubAWS(t, nil)
	cfg := testConfig()
	cfg.Store = config.StoreConfig{Backend: config.StoreDynamoDB, DynamoPrefix: "movie_app_"}

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))
}

func TestBuild_WeaviateSearcher(t *testing.T) {
	cfg := testConfig()
	cfg.Gemini.APIKey = "k"
	cfg.Vector = config.VectorConfig{Backend: config.VectorWeaviate, TopK: 5, WeaviateURL: "http://localhost:8080", WeaviateClass: "Movies"}

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, a.Handler)

	cfg.Vector.WeaviateURL = "::not a url"
	_, err = Build(context.Background(), cfg)
	require.ErrorContains(t, err, "weaviate")
}

func TestBuild_MilvusNeedsEmbedder(t *testing.T) {
	cfg := testConfig()
	cfg.Vector = config.VectorConfig{Backend: config.VectorMilvus, TopK: 5, MilvusAddress: "localhost:19530", MilvusCollection: "movies"}

	_, err := Build(context.Background(), cfg)
	require.ErrorContains(t, err, "gemini key")
}

func TestBuild_NilConfig(t *testing.T) {
	_, err := Build(context.Background(), nil)
	require.Error(t, err)
}
