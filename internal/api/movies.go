package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"movie-recommender/internal/domain"
	"movie-recommender/internal/usecase"
)

type Movies interface {
	Add(ctx context.Context, in usecase.AddMovieInput) (string, error)
	List(ctx context.Context, email string, watched bool) ([]domain.Movie, error)
	Get(ctx context.Context, email, id string) (domain.Movie, error)
	Rate(ctx context.Context, in usecase.RateMovieInput) error
	Delete(ctx context.Context, email, id string) error
}

// movieView exposes the id both as _id and movie_id.
type movieView struct {
	domain.Movie
	MovieID string `json:"movie_id"`
}

func viewMovie(m domain.Movie) movieView {
	return movieView{Movie: m, MovieID: m.ID}
}

type addMovieRequest struct {
	MovieName        string          `json:"movie_name"`
	MovieDescription string          `json:"movie_description"`
	UserEmail        string          `json:"user_email"`
	HasWatched       *bool           `json:"has_watched"`
	Rating           json.RawMessage `json:"rating"`
	Runtime          *int            `json:"runtime"`
}

type rateMovieRequest struct {
	UserEmail  string          `json:"user_email"`
	Rating     json.RawMessage `json:"rating"`
	HasWatched *bool           `json:"has_watched"`
}

type addMovieResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	MovieID string `json:"movie_id"`
}

type movieListResponse struct {
	Success bool        `json:"success"`
	Movies  []movieView `json:"movies"`
	Count   int         `json:"count"`
}

type movieResponse struct {
	Success bool      `json:"success"`
	Movie   movieView `json:"movie"`
}

type movieHandlers struct {
	movies Movies
}

func (h movieHandlers) add(w http.ResponseWriter, r *http.Request) {
	var req addMovieRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rating, err := parseRating(req.Rating)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.movies.Add(r.Context(), usecase.AddMovieInput{
		MovieName:        req.MovieName,
		MovieDescription: req.MovieDescription,
		UserEmail:        req.UserEmail,
		HasWatched:       req.HasWatched,
		Rating:           rating,
		Runtime:          req.Runtime,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, addMovieResponse{Success: true, Message: "Movie added successfully", MovieID: id})
}

func (h movieHandlers) list(watched bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		movies, err := h.movies.List(r.Context(), r.URL.Query().Get("user_email"), watched)
		if err != nil {
			writeError(w, r, err)
			return
		}
		views := make([]movieView, len(movies))
		for i, m := range movies {
			views[i] = viewMovie(m)
		}
		writeJSON(w, http.StatusOK, movieListResponse{Success: true, Movies: views, Count: len(views)})
	}
}

func (h movieHandlers) get(w http.ResponseWriter, r *http.Request) {
	m, err := h.movies.Get(r.Context(), r.URL.Query().Get("user_email"), chi.URLParam(r, "movieID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movieResponse{Success: true, Movie: viewMovie(m)})
}

func (h movieHandlers) rate(w http.ResponseWriter, r *http.Request) {
	var req rateMovieRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.UserEmail) == "" {
		writeError(w, r, invalidInput("user_email is required"))
		return
	}
	rating, err := parseRating(req.Rating)
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = h.movies.Rate(r.Context(), usecase.RateMovieInput{
		MovieID:    chi.URLParam(r, "movieID"),
		UserEmail:  req.UserEmail,
		Rating:     rating,
		HasWatched: req.HasWatched,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Movie updated successfully"})
}

func (h movieHandlers) delete(w http.ResponseWriter, r *http.Request) {
	err := h.movies.Delete(r.Context(), r.URL.Query().Get("user_email"), chi.URLParam(r, "movieID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Movie deleted successfully"})
}

// parseRating accepts a JSON number, a numeric string or null.
func parseRating(raw json.RawMessage) (*float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil, invalidInput("Rating must be a number")
		}
		s = strings.TrimSpace(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, invalidInput("Rating must be a number")
	}
	return &f, nil
}
