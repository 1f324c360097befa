package repository

import (
	"time"

	"movie-recommender/internal/domain"
)

// Filters are conjunctions of equality tests; zero-valued fields are not
// part of the filter. Patches are partial updates; nil fields are left
// untouched.

type UserFilter struct {
	ID    string
	Email string
}

func (f UserFilter) Conditions() []Field {
	var c []Field
	c = appendString(c, fieldID, f.ID)
	c = appendString(c, "email", f.Email)
	return c
}

type UserPatch struct {
	FName    *string
	LName    *string
	Password *string
}

func (p UserPatch) Fields() []Field {
	var s []Field
	s = appendPtr(s, "fname", p.FName)
	s = appendPtr(s, "lname", p.LName)
	s = appendPtr(s, "password", p.Password)
	return s
}

type MovieFilter struct {
	ID         string
	UserEmail  string
	HasWatched *bool
}

func (f MovieFilter) Conditions() []Field {
	var c []Field
	c = appendString(c, fieldID, f.ID)
	c = appendString(c, "user_email", f.UserEmail)
	c = appendPtr(c, "has_watched", f.HasWatched)
	return c
}

// Nullable is a patch value that can be set to null. Set=false leaves the
// field untouched; Set=true with a nil Value clears it.
type Nullable[T any] struct {
	Value *T
	Set   bool
}

// SetTo returns a Nullable that assigns v, or null when v is nil.
func SetTo[T any](v *T) Nullable[T] {
	return Nullable[T]{Value: v, Set: true}
}

func (n Nullable[T]) field(name string) (Field, bool) {
	if !n.Set {
		return Field{}, false
	}
	if n.Value == nil {
		return Field{Name: name, Value: nil}, true
	}
	return Field{Name: name, Value: *n.Value}, true
}

type MoviePatch struct {
	MovieName        *string
	MovieDescription *string
	HasWatched       *bool
	Rating           Nullable[float64]
	Runtime          Nullable[int]
	UpdatedAt        *time.Time
}

func (p MoviePatch) Fields() []Field {
	var s []Field
	s = appendPtr(s, "movie_name", p.MovieName)
	s = appendPtr(s, "movie_description", p.MovieDescription)
	s = appendPtr(s, "has_watched", p.HasWatched)
	if f, ok := p.Rating.field("rating"); ok {
		s = append(s, f)
	}
	if f, ok := p.Runtime.field("runtime"); ok {
		s = append(s, f)
	}
	s = appendPtr(s, "updated_at", p.UpdatedAt)
	return s
}

type MessageFilter struct {
	ID             string
	ConversationID string
	Role           domain.Role
}

func (f MessageFilter) Conditions() []Field {
	var c []Field
	c = appendString(c, fieldID, f.ID)
	c = appendString(c, "convo_id", f.ConversationID)
	c = appendString(c, "role", string(f.Role))
	return c
}

type MessagePatch struct {
	Content *string
	Source  *domain.Source
}

func (p MessagePatch) Fields() []Field {
	var s []Field
	s = appendPtr(s, "content", p.Content)
	if p.Source != nil {
		s = append(s, Field{Name: "source", Value: string(*p.Source)})
	}
	return s
}

type ConversationFilter struct {
	ID        string
	UserEmail string
}

func (f ConversationFilter) Conditions() []Field {
	var c []Field
	c = appendString(c, fieldID, f.ID)
	c = appendString(c, "user_email", f.UserEmail)
	return c
}

type ConversationPatch struct {
	UpdatedAt *time.Time
}

func (p ConversationPatch) Fields() []Field {
	return appendPtr(nil, "updated_at", p.UpdatedAt)
}

func appendString(fs []Field, name, v string) []Field {
	if v == "" {
		return fs
	}
	return append(fs, Field{Name: name, Value: v})
}

func appendPtr[T any](fs []Field, name string, v *T) []Field {
	if v == nil {
		return fs
	}
	return append(fs, Field{Name: name, Value: *v})
}
