package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"movie-recommender/internal/domain"
	"movie-recommender/internal/repository"
	"movie-recommender/internal/validation"
)

type AddMovieInput struct {
	MovieName        string   `json:"movie_name" validate:"notblank"`
	MovieDescription string   `json:"movie_description"`
	UserEmail        string   `json:"user_email" validate:"notblank"`
	HasWatched       *bool    `json:"has_watched"`
	Rating           *float64 `json:"rating"`
	Runtime          *int     `json:"runtime" validate:"omitempty,gt=0"`
}

type RateMovieInput struct {
	MovieID    string
	UserEmail  string
	Rating     *float64
	HasWatched *bool
}

// MovieService manages the movies on a user's list.
type MovieService struct {
	movies MovieStore
}

func NewMovieService(movies MovieStore) (*MovieService, error) {
	if movies == nil {
		return nil, errors.New("usecase: movie store must not be nil")
	}
	return &MovieService{movies: movies}, nil
}

// Add stores a new movie and returns its id.
func (s *MovieService) Add(ctx context.Context, in AddMovieInput) (string, error) {
	in.UserEmail = strings.TrimSpace(in.UserEmail)
	if verr := validation.Struct(in); verr != nil {
		return "", newError(ErrorInvalidInput, verr.Reason(), verr)
	}
	if err := checkRating(in.Rating); err != nil {
		return "", err
	}
	ts := now()
	m := domain.Movie{
		UserEmail:        in.UserEmail,
		MovieName:        in.MovieName,
		MovieDescription: in.MovieDescription,
		Rating:           in.Rating,
		Runtime:          in.Runtime,
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}
	if in.HasWatched != nil {
		m.HasWatched = *in.HasWatched
	}
	id := s.movies.InsertOne(ctx, m)
	if id == "" {
		return "", newError(ErrorStore, "Failed to add movie", nil)
	}
	slog.Info("movie added", "email", m.UserEmail, "movie", m.MovieName, "movie_id", id)
	return id, nil
}

// List returns the user's movies whose watched flag equals watched.
func (s *MovieService) List(ctx context.Context, email string, watched bool) ([]domain.Movie, error) {
	email, err := requireEmail(email)
	if err != nil {
		return nil, err
	}
	movies := s.movies.Find(ctx, repository.MovieFilter{UserEmail: email, HasWatched: &watched})
	if movies == nil {
		movies = []domain.Movie{}
	}
	return movies, nil
}

func (s *MovieService) Get(ctx context.Context, email, id string) (domain.Movie, error) {
	f, err := ownedMovie(email, id)
	if err != nil {
		return domain.Movie{}, err
	}
	m := s.movies.FindOne(ctx, f)
	if m == nil {
		return domain.Movie{}, newError(ErrorNotFound, "Movie not found", nil)
	}
	return *m, nil
}

// Rate sets or clears the rating, marks the movie watched unless told
// otherwise and bumps updated_at.
func (s *MovieService) Rate(ctx context.Context, in RateMovieInput) error {
	f, err := ownedMovie(in.UserEmail, in.MovieID)
	if err != nil {
		return err
	}
	if err := checkRating(in.Rating); err != nil {
		return err
	}
	watched := true
	if in.HasWatched != nil {
		watched = *in.HasWatched
	}
	ts := now()
	patch := repository.MoviePatch{
		HasWatched: &watched,
		Rating:     repository.SetTo(in.Rating),
		UpdatedAt:  &ts,
	}
	if !s.movies.UpdateOne(ctx, f, patch) {
		return newError(ErrorNotFound, "Movie not found or no changes made", nil)
	}
	slog.Info("movie rated", "email", f.UserEmail, "movie_id", f.ID)
	return nil
}

func (s *MovieService) Delete(ctx context.Context, email, id string) error {
	f, err := ownedMovie(email, id)
	if err != nil {
		return err
	}
	if !s.movies.DeleteOne(ctx, f) {
		return newError(ErrorNotFound, "Movie not found", nil)
	}
	slog.Info("movie deleted", "email", f.UserEmail, "movie_id", f.ID)
	return nil
}

func ownedMovie(email, id string) (repository.MovieFilter, error) {
	email, err := requireEmail(email)
	if err != nil {
		return repository.MovieFilter{}, err
	}
	if !repository.IsValidID(id) {
		return repository.MovieFilter{}, newError(ErrorInvalidID, "Invalid movie ID format", nil)
	}
	return repository.MovieFilter{ID: id, UserEmail: email}, nil
}

func checkRating(r *float64) error {
	if r == nil {
		return nil
	}
	if math.IsNaN(*r) || math.IsInf(*r, 0) {
		return newError(ErrorInvalidInput, "Rating must be a number", nil)
	}
	if *r < domain.MinRating || *r > domain.MaxRating {
		return newError(ErrorInvalidInput, "Rating must be between 0 and 10", nil)
	}
	return nil
}
