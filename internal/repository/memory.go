package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MemoryBackend keeps documents in process. Values are normalised through
// BSON so that equality and decoding behave as they do against MongoDB.
// It is safe for concurrent use.
type MemoryBackend struct {
	mu    sync.RWMutex
	colls map[string][]bson.M
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{colls: make(map[string][]bson.M)}
}

func (m *MemoryBackend) InsertOne(_ context.Context, coll string, doc any) error {
	d, err := toDocument(doc)
	if err != nil {
		return err
	}
	id, ok := d[fieldID].(string)
	if !ok || id == "" {
		return errors.New("repository: document has no string _id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.colls[coll]
	for _, existing := range docs {
		if existing[fieldID] == id {
			return fmt.Errorf("%w: %s %s", ErrDuplicate, coll, id)
		}
		for _, f := range uniqueFields[coll] {
			if v, ok := d[f]; ok && reflect.DeepEqual(existing[f], v) {
				return fmt.Errorf("%w: %s.%s", ErrDuplicate, coll, f)
			}
		}
	}
	i := sort.Search(len(docs), func(i int) bool { return docs[i][fieldID].(string) > id })
	docs = append(docs, nil)
	copy(docs[i+1:], docs[i:])
	docs[i] = d
	m.colls[coll] = docs
	return nil
}

func (m *MemoryBackend) FindOne(_ context.Context, coll string, conds []Field, out any) (bool, error) {
	match, err := normalizeFields(conds)
	if err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.colls[coll] {
		if matches(d, match) {
			return true, fromDocument(d, out)
		}
	}
	return false, nil
}

func (m *MemoryBackend) Find(_ context.Context, coll string, conds []Field, out any) error {
	match, err := normalizeFields(conds)
	if err != nil {
		return err
	}
	slice := reflect.ValueOf(out)
	if slice.Kind() != reflect.Pointer || slice.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("repository: find target must be a pointer to a slice, got %T", out)
	}
	elemType := slice.Elem().Type().Elem()

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := reflect.MakeSlice(slice.Elem().Type(), 0, 0)
	for _, d := range m.colls[coll] {
		if !matches(d, match) {
			continue
		}
		elem := reflect.New(elemType)
		if err := fromDocument(d, elem.Interface()); err != nil {
			return err
		}
		result = reflect.Append(result, elem.Elem())
	}
	slice.Elem().Set(result)
	return nil
}

func (m *MemoryBackend) UpdateOne(_ context.Context, coll string, conds []Field, set []Field) (bool, error) {
	match, err := normalizeFields(conds)
	if err != nil {
		return false, err
	}
	assign, err := normalizeFields(set)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.first(coll, match)
	if d == nil {
		return false, nil
	}
	for _, f := range assign {
		d[f.Name] = f.Value
	}
	return true, nil
}

func (m *MemoryBackend) DeleteOne(_ context.Context, coll string, conds []Field) (bool, error) {
	match, err := normalizeFields(conds)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.colls[coll]
	for i, d := range docs {
		if matches(d, match) {
			m.colls[coll] = append(docs[:i], docs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryBackend) Push(_ context.Context, coll string, conds []Field, field string, values []any, set []Field) (bool, error) {
	match, err := normalizeFields(conds)
	if err != nil {
		return false, err
	}
	assign, err := normalizeFields(set)
	if err != nil {
		return false, err
	}
	pushed, err := normalizeValue(values)
	if err != nil {
		return false, err
	}
	items, _ := pushed.(bson.A)

	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.first(coll, match)
	if d == nil {
		return false, nil
	}
	var list bson.A
	if cur, ok := d[field]; ok {
		if list, ok = cur.(bson.A); !ok {
			return false, fmt.Errorf("repository: cannot push to non-array field %q", field)
		}
	}
	// Copy so earlier readers never see the slice grow under them.
	next := make(bson.A, 0, len(list)+len(items))
	next = append(append(next, list...), items...)
	d[field] = next
	for _, f := range assign {
		d[f.Name] = f.Value
	}
	return true, nil
}

func (m *MemoryBackend) Close(context.Context) error { return nil }

// first must be called with mu held.
func (m *MemoryBackend) first(coll string, match []Field) bson.M {
	for _, d := range m.colls[coll] {
		if matches(d, match) {
			return d
		}
	}
	return nil
}

func matches(d bson.M, conds []Field) bool {
	for _, c := range conds {
		if !reflect.DeepEqual(d[c.Name], c.Value) {
			return false
		}
	}
	return true
}

func toDocument(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("repository: encode document: %w", err)
	}
	var d bson.M
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("repository: decode document: %w", err)
	}
	return d, nil
}

func fromDocument(d bson.M, out any) error {
	raw, err := bson.Marshal(d)
	if err != nil {
		return fmt.Errorf("repository: encode document: %w", err)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("repository: decode document: %w", err)
	}
	return nil
}

// normalizeValue converts v to the representation it has once stored.
func normalizeValue(v any) (any, error) {
	d, err := toDocument(bson.M{"v": v})
	if err != nil {
		return nil, err
	}
	return d["v"], nil
}

func normalizeFields(fs []Field) ([]Field, error) {
	out := make([]Field, len(fs))
	for i, f := range fs {
		v, err := normalizeValue(f.Value)
		if err != nil {
			return nil, err
		}
		out[i] = Field{Name: f.Name, Value: v}
	}
	return out, nil
}
