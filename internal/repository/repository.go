// Package repository is the document store adapter. Each entity kind is
// exposed as a typed table with insert, find, update and delete operations
// over equality filters. Backend failures are logged and reported as
// false, "" or empty results so callers never handle store-specific errors.
package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"

	"movie-recommender/internal/domain"
)

const (
	CollUsers         = "users"
	CollMovies        = "movies"
	CollMessages      = "messages"
	CollConversations = "conversations"

	fieldID = "_id"
)

// uniqueFields lists the fields each backend keeps unique per collection.
var uniqueFields = map[string][]string{
	CollUsers: {"email"},
}

// ErrDuplicate is returned by backends when an insert collides with an
// existing id or unique field.
var ErrDuplicate = errors.New("repository: duplicate key")

// Field is one equality condition or one assignment.
type Field struct {
	Name  string
	Value any
}

// Backend is the raw storage contract every store implementation satisfies.
// Documents are read back in ascending _id order. UpdateOne, DeleteOne and
// Push report whether a document matched the conditions.
type Backend interface {
	InsertOne(ctx context.Context, coll string, doc any) error
	FindOne(ctx context.Context, coll string, conds []Field, out any) (bool, error)
	Find(ctx context.Context, coll string, conds []Field, out any) error
	UpdateOne(ctx context.Context, coll string, conds []Field, set []Field) (bool, error)
	DeleteOne(ctx context.Context, coll string, conds []Field) (bool, error)
	Push(ctx context.Context, coll string, conds []Field, field string, values []any, set []Field) (bool, error)
	Close(ctx context.Context) error
}

// NewID returns a fresh 24-hex-character entity id.
func NewID() string {
	return bson.NewObjectID().Hex()
}

// IsValidID reports whether id is syntactically a store identifier.
func IsValidID(id string) bool {
	_, err := bson.ObjectIDFromHex(id)
	return err == nil
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	observe func(collection, op string)
}

// WithErrorObserver registers a callback invoked for every backend failure
// after it has been logged.
func WithErrorObserver(fn func(collection, op string)) Option {
	return func(o *storeOptions) { o.observe = fn }
}

// Store groups the typed tables over one backend.
type Store struct {
	Users         *Table[domain.User, UserFilter, UserPatch]
	Movies        MovieTable
	Messages      MessageTable
	Conversations ConversationTable

	backend Backend
}

// NewStore builds the four entity tables on top of b.
func NewStore(b Backend, opts ...Option) *Store {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		Users: newTable[domain.User, UserFilter, UserPatch](b, CollUsers, o.observe,
			func(u *domain.User, id string) { u.ID = id }),
		Movies: MovieTable{newTable[domain.Movie, MovieFilter, MoviePatch](b, CollMovies, o.observe,
			func(m *domain.Movie, id string) { m.ID = id })},
		Messages: MessageTable{newTable[domain.Message, MessageFilter, MessagePatch](b, CollMessages, o.observe,
			func(m *domain.Message, id string) { m.ID = id })},
		Conversations: ConversationTable{newTable[domain.Conversation, ConversationFilter, ConversationPatch](b, CollConversations, o.observe,
			func(c *domain.Conversation, id string) { c.ID = id })},
		backend: b,
	}
}

// Close releases the backend's resources.
func (s *Store) Close(ctx context.Context) error {
	return s.backend.Close(ctx)
}
