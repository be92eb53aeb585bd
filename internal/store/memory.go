package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"logitrack/internal/common"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local development.
// A single mutex serializes transactions, which trivially gives the
// commit-or-nothing guarantee the interface promises.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[string]map[string]any // collection -> id -> document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]map[string]any)}
}

func (s *MemoryStore) Insert(ctx context.Context, collection string, record any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(collection, record)
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(collection, id, dest)
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(collection, id, partial)
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.data[collection]
	if _, ok := docs[id]; !ok {
		return common.ErrNotFound
	}
	delete(docs, id)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query, dest any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []map[string]any
	for _, doc := range s.data[collection] {
		ok, err := matches(doc, q.Filters)
		if err != nil {
			return err
		}
		if ok {
			matched = append(matched, doc)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			less := fieldLess(matched[i][q.OrderBy], matched[j][q.OrderBy])
			if q.Desc {
				return !less
			}
			return less
		})
	}

	raw, err := json.Marshal(matched)
	if err != nil {
		return fmt.Errorf("encode %s query result: %w", collection, err)
	}
	return json.Unmarshal(raw, dest)
}

// Transact holds the store lock for the whole body and restores a snapshot
// of the data when the body fails, so partial effects never become visible.
func (s *MemoryStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.copyData()
	if err := fn(&memoryTx{store: s}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

type memoryTx struct {
	store *MemoryStore
}

func (t *memoryTx) Get(ctx context.Context, collection, id string, dest any) error {
	return t.store.getLocked(collection, id, dest)
}

func (t *memoryTx) Insert(ctx context.Context, collection string, record any) (string, error) {
	return t.store.insertLocked(collection, record)
}

func (t *memoryTx) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	return t.store.updateLocked(collection, id, partial)
}

func (s *MemoryStore) insertLocked(collection string, record any) (string, error) {
	doc, err := encodeRecord(record)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	doc["id"] = id
	doc["created_at"] = now
	doc["updated_at"] = now

	if s.data[collection] == nil {
		s.data[collection] = make(map[string]map[string]any)
	}
	s.data[collection][id] = doc
	return id, nil
}

func (s *MemoryStore) getLocked(collection, id string, dest any) error {
	doc, ok := s.data[collection][id]
	if !ok {
		return common.ErrNotFound
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", collection, err)
	}
	return json.Unmarshal(raw, dest)
}

func (s *MemoryStore) updateLocked(collection, id string, partial map[string]any) error {
	doc, ok := s.data[collection][id]
	if !ok {
		return common.ErrNotFound
	}
	// Normalize partial values through JSON so stored documents stay uniform.
	normalized, err := encodeRecord(partial)
	if err != nil {
		return err
	}
	for k, v := range normalized {
		doc[k] = v
	}
	doc["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	return nil
}

func (s *MemoryStore) copyData() map[string]map[string]map[string]any {
	snapshot := make(map[string]map[string]map[string]any, len(s.data))
	for collection, docs := range s.data {
		cp := make(map[string]map[string]any, len(docs))
		for id, doc := range docs {
			docCopy := make(map[string]any, len(doc))
			for k, v := range doc {
				docCopy[k] = v
			}
			cp[id] = docCopy
		}
		snapshot[collection] = cp
	}
	return snapshot
}

func matches(doc map[string]any, filters []Filter) (bool, error) {
	for _, f := range filters {
		switch f.Op {
		case OpEqual:
			if !jsonEqual(doc[f.Field], f.Value) {
				return false, nil
			}
		case OpArrayContains:
			arr, ok := doc[f.Field].([]any)
			if !ok {
				return false, nil
			}
			found := false
			for _, elem := range arr {
				if containsFields(elem, f.Value) {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}
	return true, nil
}

// jsonEqual compares two values after JSON normalization, so a typed filter
// value matches the generic form documents are stored in.
func jsonEqual(a, b any) bool {
	ra, err := json.Marshal(a)
	if err != nil {
		return false
	}
	rb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ra) == string(rb)
}

// containsFields reports whether elem carries at least the fields of value
// (partial object containment, matching the JSONB @> behavior).
func containsFields(elem, value any) bool {
	want, err := encodeRecord(value)
	if err != nil {
		return jsonEqual(elem, value)
	}
	have, ok := elem.(map[string]any)
	if !ok {
		return false
	}
	for k, v := range want {
		if !jsonEqual(have[k], v) {
			return false
		}
	}
	return true
}

func fieldLess(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		at, aerr := time.Parse(time.RFC3339Nano, as)
		bt, berr := time.Parse(time.RFC3339Nano, bs)
		if aerr == nil && berr == nil {
			return at.Before(bt)
		}
		return as < bs
	}
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return af < bf
	}
	return false
}
