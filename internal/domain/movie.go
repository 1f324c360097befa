package domain

import "time"

const (
	MinRating = 0.0
	MaxRating = 10.0
)

// Movie is an entry on a user's list. Unwatched movies form the watchlist.
type Movie struct {
	ID               string    `bson:"_id,omitempty" dynamodbav:"_id,omitempty" json:"_id,omitempty"`
	UserEmail        string    `bson:"user_email" dynamodbav:"user_email" json:"user_email"`
	MovieName        string    `bson:"movie_name" dynamodbav:"movie_name" json:"movie_name"`
	MovieDescription string    `bson:"movie_description" dynamodbav:"movie_description" json:"movie_description"`
	HasWatched       bool      `bson:"has_watched" dynamodbav:"has_watched" json:"has_watched"`
	Rating           *float64  `bson:"rating" dynamodbav:"rating" json:"rating"`
	Runtime          *int      `bson:"runtime" dynamodbav:"runtime" json:"runtime"`
	CreatedAt        time.Time `bson:"created_at" dynamodbav:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" dynamodbav:"updated_at" json:"updated_at"`
}

// MovieHit is one nearest-neighbour result from the vector index.
type MovieHit struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
