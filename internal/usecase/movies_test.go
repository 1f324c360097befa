package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"movie-recommender/internal/repository"
)

func ptr[T any](v T) *T { return &v }

func newMovies(t *testing.T) (*MovieService, *repository.Store) {
	t.Helper()
	fixClock(t)
	store := newStore(t)
	svc, err := NewMovieService(store.Movies)
	require.NoError(t, err)
	return svc, store
}

func inception(email string) AddMovieInput {
	return AddMovieInput{
		MovieName:        "Inception",
		MovieDescription: "A thief who steals corporate secrets",
		UserEmail:        email,
		Runtime:          ptr(148),
	}
}

func TestAddMovie_Defaults(t *testing.T) {
	svc, _ := newMovies(t)
	ctx := context.Background()

	id, err := svc.Add(ctx, inception("a@b.com"))
	require.NoError(t, err)
	require.True(t, repository.IsValidID(id))

	m, err := svc.Get(ctx, "a@b.com", id)
	require.NoError(t, err)
	require.Equal(t, id, m.ID)
	require.False(t, m.HasWatched)
	require.Nil(t, m.Rating)
	require.Equal(t, 148, *m.Runtime)
	require.Equal(t, m.CreatedAt, m.UpdatedAt)
}

func TestAddMovie_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AddMovieInput)
		reason string
	}{
		{name: "blank name", mutate: func(in *AddMovieInput) { in.MovieName = " " }, reason: "movie_name is required"},
		{name: "no owner", mutate: func(in *AddMovieInput) { in.UserEmail = "" }, reason: "user_email is required"},
		{name: "zero runtime", mutate: func(in *AddMovieInput) { in.Runtime = ptr(0) }, reason: "runtime must be greater than 0"},
		{name: "rating above range", mutate: func(in *AddMovieInput) { in.Rating = ptr(10.5) }, reason: "Rating must be between 0 and 10"},
		{name: "rating not finite", mutate: func(in *AddMovieInput) { in.Rating = ptr(math.Inf(1)) }, reason: "Rating must be a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newMovies(t)
			in := inception("a@b.com")
			tt.mutate(&in)
			_, err := svc.Add(context.Background(), in)
			ue := requireCode(t, err, ErrorInvalidInput)
			require.Equal(t, tt.reason, ue.Reason)
		})
	}
}

func TestListMovies_SplitsByWatchedAndOwner(t *testing.T) {
	svc, _ := newMovies(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, inception("a@b.com"))
	require.NoError(t, err)
	seen := inception("a@b.com")
	seen.MovieName = "Heat"
	seen.HasWatched = ptr(true)
	_, err = svc.Add(ctx, seen)
	require.NoError(t, err)
	_, err = svc.Add(ctx, inception("other@b.com"))
	require.NoError(t, err)

	unwatched, err := svc.List(ctx, "a@b.com", false)
	require.NoError(t, err)
	require.Len(t, unwatched, 1)
	require.Equal(t, "Inception", unwatched[0].MovieName)

	watched, err := svc.List(ctx, "a@b.com", true)
	require.NoError(t, err)
	require.Len(t, watched, 1)
	require.Equal(t, "Heat", watched[0].MovieName)

	none, err := svc.List(ctx, "nobody@b.com", true)
	require.NoError(t, err)
	require.NotNil(t, none)
	require.Empty(t, none)

	_, err = svc.List(ctx, " ", true)
	requireCode(t, err, ErrorInvalidInput)
}

func TestGetMovie_Errors(t *testing.T) {
	svc, _ := newMovies(t)
	ctx := context.Background()
	id, err := svc.Add(ctx, inception("a@b.com"))
	require.NoError(t, err)

	_, err = svc.Get(ctx, "a@b.com", "not-an-id")
	requireCode(t, err, ErrorInvalidID)

	_, err = svc.Get(ctx, "other@b.com", id)
	requireCode(t, err, ErrorNotFound)

	_, err = svc.Get(ctx, "", id)
	requireCode(t, err, ErrorInvalidInput)
}

func TestRateMovie_Range(t *testing.T) {
	tests := []struct {
		rating float64
		ok     bool
	}{
		{rating: -1}, {rating: 11}, {rating: math.NaN()},
		{rating: 0, ok: true}, {rating: 10, ok: true}, {rating: 7.5, ok: true},
	}
	svc, _ := newMovies(t)
	ctx := context.Background()
	id, err := svc.Add(ctx, inception("a@b.com"))
	require.NoError(t, err)

	for _, tt := range tests {
		err := svc.Rate(ctx, RateMovieInput{MovieID: id, UserEmail: "a@b.com", Rating: ptr(tt.rating)})
		if !tt.ok {
			requireCode(t, err, ErrorInvalidInput)
			continue
		}
		require.NoError(t, err)
		m, err := svc.Get(ctx, "a@b.com", id)
		require.NoError(t, err)
		require.Equal(t, tt.rating, *m.Rating)
	}
}

func TestRateMovie_MarksWatchedAndClears(t *testing.T) {
	svc, _ := newMovies(t)
	ctx := context.Background()
	id, err := svc.Add(ctx, inception("a@b.com"))
	require.NoError(t, err)
	before, err := svc.Get(ctx, "a@b.com", id)
	require.NoError(t, err)

	require.NoError(t, svc.Rate(ctx, RateMovieInput{MovieID: id, UserEmail: "a@b.com", Rating: ptr(8.5)}))
	m, err := svc.Get(ctx, "a@b.com", id)
	require.NoError(t, err)
	require.True(t, m.HasWatched)
	require.Equal(t, 8.5, *m.Rating)
	require.True(t, m.UpdatedAt.After(before.UpdatedAt))

	require.NoError(t, svc.Rate(ctx, RateMovieInput{MovieID: id, UserEmail: "a@b.com", HasWatched: ptr(false)}))
	m, err = svc.Get(ctx, "a@b.com", id)
	require.NoError(t, err)
	require.False(t, m.HasWatched)
	require.Nil(t, m.Rating)
}

func TestRateMovie_NotFound(t *testing.T) {
	svc, _ := newMovies(t)
	ctx := context.Background()
	id, err := svc.Add(ctx, inception("a@b.com"))
	require.NoError(t, err)

	err = svc.Rate(ctx, RateMovieInput{MovieID: id, UserEmail: "other@b.com", Rating: ptr(5.0)})
	requireCode(t, err, ErrorNotFound)

	err = svc.Rate(ctx, RateMovieInput{MovieID: repository.NewID(), UserEmail: "a@b.com", Rating: ptr(5.0)})
	requireCode(t, err, ErrorNotFound)
}

func TestDeleteMovie(t *testing.T) {
	svc, _ := newMovies(t)
	ctx := context.Background()
	id, err := svc.Add(ctx, inception("a@b.com"))
	require.NoError(t, err)

	requireCode(t, svc.Delete(ctx, "other@b.com", id), ErrorNotFound)
	require.NoError(t, svc.Delete(ctx, "a@b.com", id))
	requireCode(t, svc.Delete(ctx, "a@b.com", id), ErrorNotFound)
	requireCode(t, svc.Delete(ctx, "a@b.com", "xyz"), ErrorInvalidID)
}
