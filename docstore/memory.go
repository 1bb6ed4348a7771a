package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory Store. It evaluates queries with the same semantics
// as the Firestore backend (default ordering, missing-order-field exclusion,
// identifier tie-break) and delivers subscription snapshots synchronously on
// every mutation, which makes it the fixture store for tests and a
// stand-alone offline backend.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
	subs        map[int]*memorySubscription
	nextSub     int
	stampField  string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]map[string]interface{}),
		subs:        make(map[int]*memorySubscription),
		stampField:  DefaultStampField,
	}
}

// SetStampField changes the field stamped onto writes and used for default
// ordering. An empty name disables stamping.
func (s *Memory) SetStampField(field string) *Memory {
	s.stampField = field
	return s
}

func (s *Memory) NewID(string) string {
	return uuid.NewString()
}

// ActiveSubscriptions reports how many realtime channels are currently open.
func (s *Memory) ActiveSubscriptions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

func (s *Memory) col(collection string) map[string]map[string]interface{} {
	c, ok := s.collections[collection]
	if !ok {
		c = make(map[string]map[string]interface{})
		s.collections[collection] = c
	}
	return c
}

func (s *Memory) GetDoc(_ context.Context, collection, id string, _ ReadOptions) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.collections[collection][id]
	if !ok {
		return nil, nil
	}
	doc := Document{ID: id, Fields: fields}.Clone()
	return &doc, nil
}

func (s *Memory) GetDocs(_ context.Context, collection string, q Query, _ ReadOptions) (QueryResult, error) {
	s.mu.RLock()
	docs := s.snapshotLocked(collection, q)
	s.mu.RUnlock()

	var res QueryResult
	res.Docs = docs
	if len(docs) > 0 {
		res.First = &Cursor{Doc: docs[0].Clone()}
		res.Last = &Cursor{Doc: docs[len(docs)-1].Clone()}
	}
	return res, nil
}

func (s *Memory) Add(_ context.Context, collection string, fields map[string]interface{}) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	s.col(collection)[id] = stampFields(fields, s.stampField)
	deliveries := s.pendingDeliveriesLocked(collection)
	s.mu.Unlock()

	deliver(deliveries)
	return id, nil
}

func (s *Memory) Set(_ context.Context, collection, id string, fields map[string]interface{}, merge bool) error {
	stamped := stampFields(fields, s.stampField)

	s.mu.Lock()
	col := s.col(collection)
	if existing, ok := col[id]; ok && merge {
		for k, v := range stamped {
			existing[k] = v
		}
	} else {
		col[id] = stamped
	}
	deliveries := s.pendingDeliveriesLocked(collection)
	s.mu.Unlock()

	deliver(deliveries)
	return nil
}

func (s *Memory) Update(_ context.Context, collection, id string, fields map[string]interface{}) error {
	stamped := stampFields(fields, s.stampField)

	s.mu.Lock()
	existing, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return newError(NotFound, fmt.Sprintf("update document: %s/%s does not exist", collection, id), nil)
	}
	for k, v := range stamped {
		existing[k] = v
	}
	deliveries := s.pendingDeliveriesLocked(collection)
	s.mu.Unlock()

	deliver(deliveries)
	return nil
}

func (s *Memory) Remove(_ context.Context, collection, id string) error {
	s.mu.Lock()
	col, ok := s.collections[collection]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if _, ok := col[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(col, id)
	deliveries := s.pendingDeliveriesLocked(collection)
	s.mu.Unlock()

	deliver(deliveries)
	return nil
}

// Subscribe registers a listener and synchronously delivers the initial
// result set before returning.
func (s *Memory) Subscribe(_ context.Context, collection string, q Query, onData func([]Document), onError func(error)) (Subscription, error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	sub := &memorySubscription{store: s, id: id, collection: collection, query: q, onData: onData, onError: onError}
	s.subs[id] = sub
	initial := s.snapshotLocked(collection, q)
	s.mu.Unlock()

	onData(initial)
	return sub, nil
}

type memorySubscription struct {
	store      *Memory
	id         int
	collection string
	query      Query
	onData     func([]Document)
	onError    func(error)
	stopped    atomic.Bool
}

func (sub *memorySubscription) Unsubscribe() {
	if sub.stopped.CompareAndSwap(false, true) {
		sub.store.mu.Lock()
		delete(sub.store.subs, sub.id)
		sub.store.mu.Unlock()
	}
}

type delivery struct {
	sub  *memorySubscription
	docs []Document
}

func (s *Memory) pendingDeliveriesLocked(collection string) []delivery {
	var out []delivery
	for _, sub := range s.subs {
		if sub.collection != collection {
			continue
		}
		out = append(out, delivery{sub: sub, docs: s.snapshotLocked(collection, sub.query)})
	}
	return out
}

// deliver runs outside the store lock so callbacks may call back into the
// store.
func deliver(deliveries []delivery) {
	for _, d := range deliveries {
		if !d.sub.stopped.Load() {
			d.sub.onData(d.docs)
		}
	}
}

func (s *Memory) snapshotLocked(collection string, q Query) []Document {
	col := s.collections[collection]
	docs := make([]Document, 0, len(col))
	for id, fields := range col {
		docs = append(docs, Document{ID: id, Fields: fields}.Clone())
	}
	return evalQuery(docs, q, s.stampField)
}

// evalQuery applies a query to an unordered document set with the remote
// store's semantics: filters exclude documents missing the field, ordering
// excludes documents missing the order field, ties break on identifier in
// the ordering direction.
func evalQuery(docs []Document, q Query, stampField string) []Document {
	q = q.normalized(stampField)

	matched := make([]Document, 0, len(docs))
	for _, d := range docs {
		if _, ok := d.Fields[q.OrderField]; !ok {
			continue
		}
		if whereMatch(d.Fields, q.Where) {
			matched = append(matched, d)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return orderedBefore(matched[i], matched[j], q.OrderField, q.OrderDesc)
	})

	if q.StartAfter != nil {
		cursor := q.StartAfter.Doc
		for len(matched) > 0 && !orderedBefore(cursor, matched[0], q.OrderField, q.OrderDesc) {
			matched = matched[1:]
		}
	}
	if q.EndBefore != nil {
		cursor := q.EndBefore.Doc
		cut := len(matched)
		for cut > 0 && !orderedBefore(matched[cut-1], cursor, q.OrderField, q.OrderDesc) {
			cut--
		}
		matched = matched[:cut]
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched
}

func orderedBefore(a, b Document, field string, desc bool) bool {
	cmp, ok := compareValues(a.Fields[field], b.Fields[field])
	if !ok || cmp == 0 {
		cmp = compareStrings(a.ID, b.ID)
	}
	if desc {
		return cmp > 0
	}
	return cmp < 0
}

func whereMatch(fields map[string]interface{}, preds []Where) bool {
	for _, w := range preds {
		value, ok := fields[w.Field]
		if !ok {
			return false
		}
		if !predicateMatch(value, w) {
			return false
		}
	}
	return true
}

func predicateMatch(value interface{}, w Where) bool {
	switch w.Op {
	case "in":
		items, ok := w.Value.([]interface{})
		if !ok {
			return false
		}
		for _, item := range items {
			if equalValues(value, item) {
				return true
			}
		}
		return false
	case "array-contains":
		items, ok := value.([]interface{})
		if !ok {
			return false
		}
		for _, item := range items {
			if equalValues(item, w.Value) {
				return true
			}
		}
		return false
	}

	cmp, ok := compareValues(value, w.Value)
	if !ok {
		if w.Op == "!=" {
			return !equalValues(value, w.Value)
		}
		return w.Op == "==" && equalValues(value, w.Value)
	}
	switch w.Op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	default:
		return false
	}
}

func equalValues(a, b interface{}) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two field values when they are of comparable kinds:
// numbers (across int/float widths), strings, bools, and times.
func compareValues(a, b interface{}) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return compareStrings(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case av.Before(bv):
			return -1, true
		case av.After(bv):
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
