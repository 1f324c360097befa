package repository

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"movie-recommender/internal/domain"
)

// Filter is a typed equality filter.
type Filter interface {
	Conditions() []Field
}

// Patch is a typed partial update.
type Patch interface {
	Fields() []Field
}

var (
	errEmptyFilter = errors.New("repository: refusing to write with an empty filter")
	errEmptyPatch  = errors.New("repository: empty patch")
)

// Table is one collection of T documents.
type Table[T any, F Filter, P Patch] struct {
	backend Backend
	name    string
	observe func(collection, op string)
	setID   func(*T, string)
}

func newTable[T any, F Filter, P Patch](b Backend, name string, observe func(string, string), setID func(*T, string)) *Table[T, F, P] {
	return &Table[T, F, P]{backend: b, name: name, observe: observe, setID: setID}
}

func (t *Table[T, F, P]) fail(op string, err error) {
	slog.Error("repository: operation failed", "collection", t.name, "op", op, "err", err)
	if t.observe != nil {
		t.observe(t.name, op)
	}
}

// InsertOne stores doc under a newly generated id and returns that id, or ""
// on failure.
func (t *Table[T, F, P]) InsertOne(ctx context.Context, doc T) string {
	id := NewID()
	t.setID(&doc, id)
	if err := t.backend.InsertOne(ctx, t.name, &doc); err != nil {
		t.fail("insert_one", err)
		return ""
	}
	return id
}

// FindOne returns the first document matching f, or nil.
func (t *Table[T, F, P]) FindOne(ctx context.Context, f F) *T {
	var out T
	ok, err := t.backend.FindOne(ctx, t.name, f.Conditions(), &out)
	if err != nil {
		t.fail("find_one", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &out
}

// Find returns every document matching f in id order. It never returns nil.
func (t *Table[T, F, P]) Find(ctx context.Context, f F) []T {
	return t.find(ctx, f.Conditions())
}

// FindAll returns every document in the collection.
func (t *Table[T, F, P]) FindAll(ctx context.Context) []T {
	return t.find(ctx, nil)
}

func (t *Table[T, F, P]) find(ctx context.Context, conds []Field) []T {
	var out []T
	if err := t.backend.Find(ctx, t.name, conds, &out); err != nil {
		t.fail("find", err)
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

// UpdateOne merges p into the first document matching f and reports whether
// one matched.
func (t *Table[T, F, P]) UpdateOne(ctx context.Context, f F, p P) bool {
	conds := f.Conditions()
	if len(conds) == 0 {
		t.fail("update_one", errEmptyFilter)
		return false
	}
	set := p.Fields()
	if len(set) == 0 {
		t.fail("update_one", errEmptyPatch)
		return false
	}
	ok, err := t.backend.UpdateOne(ctx, t.name, conds, set)
	if err != nil {
		t.fail("update_one", err)
		return false
	}
	return ok
}

// DeleteOne removes the first document matching f and reports whether one
// matched.
func (t *Table[T, F, P]) DeleteOne(ctx context.Context, f F) bool {
	conds := f.Conditions()
	if len(conds) == 0 {
		t.fail("delete_one", errEmptyFilter)
		return false
	}
	ok, err := t.backend.DeleteOne(ctx, t.name, conds)
	if err != nil {
		t.fail("delete_one", err)
		return false
	}
	return ok
}

func (t *Table[T, F, P]) push(ctx context.Context, conds []Field, field string, values []any, set []Field) bool {
	ok, err := t.backend.Push(ctx, t.name, conds, field, values, set)
	if err != nil {
		t.fail("push", err)
		return false
	}
	return ok
}

type MovieTable struct {
	*Table[domain.Movie, MovieFilter, MoviePatch]
}

// FindByUser returns the movies owned by email.
func (t MovieTable) FindByUser(ctx context.Context, email string) []domain.Movie {
	return t.Find(ctx, MovieFilter{UserEmail: email})
}

type MessageTable struct {
	*Table[domain.Message, MessageFilter, MessagePatch]
}

// FindByConversation returns the messages stored under convoID ordered by
// timestamp; equal timestamps keep insertion order.
func (t MessageTable) FindByConversation(ctx context.Context, convoID string) []domain.Message {
	msgs := t.Find(ctx, MessageFilter{ConversationID: convoID})
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs
}

type ConversationTable struct {
	*Table[domain.Conversation, ConversationFilter, ConversationPatch]
}

// InsertOne stores c with an empty message list when it has none, so later
// appends have a list to extend.
func (t ConversationTable) InsertOne(ctx context.Context, c domain.Conversation) string {
	if c.Messages == nil {
		c.Messages = []domain.Message{}
	}
	return t.Table.InsertOne(ctx, c)
}

// FindByUser returns the conversations owned by email.
func (t ConversationTable) FindByUser(ctx context.Context, email string) []domain.Conversation {
	return t.Find(ctx, ConversationFilter{UserEmail: email})
}

// AppendMessage appends msg to conversation id. It returns false when no
// such conversation exists.
func (t ConversationTable) AppendMessage(ctx context.Context, id string, msg domain.Message) bool {
	conds := ConversationFilter{ID: id}.Conditions()
	if len(conds) == 0 {
		return false
	}
	return t.push(ctx, conds, "messages", []any{msg}, nil)
}

// AppendExchange appends msgs in order to the conversation identified by id
// and owner and sets updated_at, all in one single-document write.
func (t ConversationTable) AppendExchange(ctx context.Context, id, owner string, updatedAt time.Time, msgs ...domain.Message) bool {
	if id == "" || owner == "" || len(msgs) == 0 {
		return false
	}
	values := make([]any, len(msgs))
	for i, m := range msgs {
		values[i] = m
	}
	conds := ConversationFilter{ID: id, UserEmail: owner}.Conditions()
	return t.push(ctx, conds, "messages", values, []Field{{Name: "updated_at", Value: updatedAt}})
}
