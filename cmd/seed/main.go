// Command seed recreates the Weaviate movie class and loads it from a CSV
// file with title and overview (or description) columns.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"movie-recommender/internal/config"
	"movie-recommender/internal/integrations/weaviate"
	"movie-recommender/internal/logging"
)

func main() {
	csvPath := flag.String("csv", "movies.csv", "CSV file with title and overview columns")
	vectorizer := flag.String("vectorizer", "text2vec-contextionary", "Weaviate vectorizer module for the class")
	batchSize := flag.Int("batch", 100, "objects per batch request")
	limit := flag.Int("limit", 0, "load at most this many rows (0 = all)")
	weaviateURL := flag.String("weaviate-url", "", "overrides vector.weaviate_url")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller})

	if *weaviateURL != "" {
		cfg.Vector.WeaviateURL = *weaviateURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *csvPath, *vectorizer, *batchSize, *limit); err != nil {
		slog.Error("seeding failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, csvPath, vectorizer string, batchSize, limit int) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	movies, err := readMovies(f, limit)
	if err != nil {
		return err
	}

	client, err := weaviate.NewClient(weaviate.Config{
		URL:    cfg.Vector.WeaviateURL,
		APIKey: cfg.Vector.WeaviateAPIKey,
		Class:  cfg.Vector.WeaviateClass,
	})
	if err != nil {
		return err
	}
	seeder, err := weaviate.NewSeeder(client, cfg.Vector.WeaviateClass, vectorizer, batchSize)
	if err != nil {
		return err
	}
	if err := seeder.Recreate(ctx); err != nil {
		return err
	}
	n, err := seeder.Load(ctx, movies)
	if err != nil {
		return err
	}
	slog.Info("seeding complete", "class", cfg.Vector.WeaviateClass, "loaded", n, "rows", len(movies))
	return nil
}
