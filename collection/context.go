// Package collection owns the live view of one document collection. A
// Context holds the current snapshot delivered by a realtime listener or an
// explicit fetch, a separately fetched trending view, and a client-side
// substring-filtered view, and mediates all reads and writes for its
// consumers.
package collection

import (
	"context"
	"strings"
	"sync"

	"github.com/clipstack/firedata/alerts"
	"github.com/clipstack/firedata/docstore"
)

// Doc pairs a decoded document with its store-assigned identifier. The
// identifier is never stored as a field; models that carry a string ID field
// have it filled from the identifier on decode.
type Doc[T any] struct {
	ID   string
	Data T

	fields map[string]interface{}
}

// Field returns the raw value of a named field, for callers that need values
// outside T's shape.
func (d Doc[T]) Field(name string) (interface{}, bool) {
	v, ok := d.fields[name]
	return v, ok
}

type filterState struct {
	field     string
	substring string
}

// Context is the access layer for one collection. All state is private to
// the instance; two Contexts over the same collection name hold independent
// snapshots. Failures are reported to the error surface and returned as
// ordinary errors — nothing panics across this boundary.
type Context[T any] struct {
	store      docstore.Store
	collection string
	surface    *alerts.Surface

	mu        sync.Mutex
	docs      []Doc[T]
	filtered  []Doc[T]
	trending  []Doc[T]
	filter    *filterState
	listening bool
	loading   int
	sub       docstore.Subscription
	lastQuery docstore.Query
	hasQuery  bool
}

// New creates a Context over the named collection. store and surface must be
// non-nil; this is a construction precondition, not a runtime lookup.
func New[T any](store docstore.Store, collection string, surface *alerts.Surface) *Context[T] {
	if store == nil {
		panic("collection: nil store")
	}
	if surface == nil {
		panic("collection: nil error surface")
	}
	return &Context[T]{store: store, collection: collection, surface: surface}
}

// StartListener opens a realtime subscription for q, releasing any prior
// subscription first so that exactly one is live. The snapshot is replaced
// wholesale on every delivery; IsListening turns true after the first one.
func (c *Context[T]) StartListener(ctx context.Context, q docstore.Query) error {
	c.mu.Lock()
	if c.sub != nil {
		c.sub.Unsubscribe()
		c.sub = nil
	}
	c.listening = false
	c.lastQuery = q
	c.hasQuery = true
	c.mu.Unlock()

	sub, err := c.store.Subscribe(ctx, c.collection, q, c.onDeliver, c.onListenError)
	if err != nil {
		c.mu.Lock()
		c.lastQuery = docstore.Query{}
		c.hasQuery = false
		c.mu.Unlock()
		c.surface.Handle(err)
		return err
	}

	c.mu.Lock()
	if c.sub != nil {
		// A concurrent StartListener won the race; the latest one wins.
		sub.Unsubscribe()
	} else {
		c.sub = sub
	}
	c.mu.Unlock()
	return nil
}

// StopListener releases the active subscription, if any. No further
// deliveries are accepted afterwards.
func (c *Context[T]) StopListener() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		c.sub.Unsubscribe()
		c.sub = nil
	}
	c.listening = false
	c.lastQuery = docstore.Query{}
	c.hasQuery = false
}

// Close releases the subscription on teardown.
func (c *Context[T]) Close() {
	c.StopListener()
}

func (c *Context[T]) onDeliver(raw []docstore.Document) {
	docs := c.decodeAll(raw)
	c.mu.Lock()
	c.docs = docs
	c.listening = true
	c.recomputeFilteredLocked()
	c.mu.Unlock()
}

func (c *Context[T]) onListenError(err error) {
	c.mu.Lock()
	c.listening = false
	c.sub = nil
	c.mu.Unlock()
	c.surface.Handle(err)
}

// RefreshCollection replaces the snapshot with a one-shot fetch. q is merged
// over the last listener query, explicit fields taking precedence. The
// subscription, if any, is unaffected.
func (c *Context[T]) RefreshCollection(ctx context.Context, q docstore.Query) error {
	c.mu.Lock()
	if c.hasQuery {
		q = docstore.MergeQueries(c.lastQuery, q)
	}
	c.mu.Unlock()

	c.beginLoading()
	defer c.endLoading()

	res, err := c.store.GetDocs(ctx, c.collection, q, docstore.ReadOptions{})
	if err != nil {
		c.surface.Handle(err)
		return err
	}

	docs := c.decodeAll(res.Docs)
	c.mu.Lock()
	c.docs = docs
	c.recomputeFilteredLocked()
	c.mu.Unlock()
	return nil
}

// RefreshDocument fetches one document and, when found, patches the matching
// snapshot entry in place, leaving order and the other entries untouched.
// Not-found leaves the snapshot unchanged and returns (nil, nil).
func (c *Context[T]) RefreshDocument(ctx context.Context, id string, forceServer bool) (*Doc[T], error) {
	c.beginLoading()
	defer c.endLoading()

	raw, err := c.store.GetDoc(ctx, c.collection, id, docstore.ReadOptions{FromCache: !forceServer})
	if err != nil {
		c.surface.Handle(err)
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	doc, err := c.decode(*raw)
	if err != nil {
		c.surface.Handle(err)
		return nil, err
	}

	c.mu.Lock()
	for i := range c.docs {
		if c.docs[i].ID == id {
			c.docs[i] = doc
			break
		}
	}
	c.recomputeFilteredLocked()
	c.mu.Unlock()
	return &doc, nil
}

// TrendingDocuments fetches the top-count documents by field, descending,
// from the server into the trending view. The main snapshot is untouched.
func (c *Context[T]) TrendingDocuments(ctx context.Context, field string, count int) ([]Doc[T], error) {
	c.beginLoading()
	defer c.endLoading()

	q := docstore.Query{OrderField: field, OrderDesc: true, Limit: count}
	res, err := c.store.GetDocs(ctx, c.collection, q, docstore.ReadOptions{})
	if err != nil {
		c.surface.Handle(err)
		return nil, err
	}

	docs := c.decodeAll(res.Docs)
	c.mu.Lock()
	c.trending = docs
	c.mu.Unlock()
	return append([]Doc[T](nil), docs...), nil
}

// FilteredAndOrderedDocuments runs a one-shot fetch with an explicit filter,
// ordering, and limit, returned directly to the caller. Neither the snapshot
// nor the trending view is mutated.
func (c *Context[T]) FilteredAndOrderedDocuments(ctx context.Context, filter docstore.Where, orderField string, orderDesc bool, limit int) ([]Doc[T], error) {
	c.beginLoading()
	defer c.endLoading()

	q := docstore.Query{
		OrderField: orderField,
		OrderDesc:  orderDesc,
		Where:      []docstore.Where{filter},
		Limit:      limit,
	}
	res, err := c.store.GetDocs(ctx, c.collection, q, docstore.ReadOptions{})
	if err != nil {
		c.surface.Handle(err)
		return nil, err
	}
	return c.decodeAll(res.Docs), nil
}

// AddDocument writes a new document through to the store and returns its
// identifier. The snapshot is not mutated optimistically; the new document
// becomes visible via listener delivery or an explicit refresh.
func (c *Context[T]) AddDocument(ctx context.Context, data T) (string, error) {
	c.beginLoading()
	defer c.endLoading()

	fields, err := docstore.Encode(data)
	if err != nil {
		c.surface.Handle(err)
		return "", err
	}
	id, err := c.store.Add(ctx, c.collection, fields)
	if err != nil {
		c.surface.Handle(err)
		return "", err
	}
	return id, nil
}

// UpdateDocument partially updates a document. Like AddDocument, the
// snapshot only changes through listener delivery or refresh.
func (c *Context[T]) UpdateDocument(ctx context.Context, id string, fields map[string]interface{}) error {
	c.beginLoading()
	defer c.endLoading()

	if err := c.store.Update(ctx, c.collection, id, fields); err != nil {
		c.surface.Handle(err)
		return err
	}
	return nil
}

// DeleteDocument deletes a document write-through.
func (c *Context[T]) DeleteDocument(ctx context.Context, id string) error {
	c.beginLoading()
	defer c.endLoading()

	if err := c.store.Remove(ctx, c.collection, id); err != nil {
		c.surface.Handle(err)
		return err
	}
	return nil
}

// FilterBySubstring sets the filter state: the filtered view becomes the
// subset of the snapshot whose field value is a string containing substring,
// case-insensitively. An empty field or substring clears to the full
// snapshot.
func (c *Context[T]) FilterBySubstring(field, substring string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = &filterState{field: field, substring: substring}
	c.recomputeFilteredLocked()
}

// ClearFilters resets the filtered view to the full snapshot.
func (c *Context[T]) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = nil
	c.recomputeFilteredLocked()
}

func (c *Context[T]) recomputeFilteredLocked() {
	if c.filter == nil || c.filter.field == "" || c.filter.substring == "" {
		c.filtered = c.docs
		return
	}
	needle := strings.ToLower(c.filter.substring)
	filtered := make([]Doc[T], 0, len(c.docs))
	for _, doc := range c.docs {
		value, ok := doc.fields[c.filter.field]
		if !ok {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(s), needle) {
			filtered = append(filtered, doc)
		}
	}
	c.filtered = filtered
}

// Documents returns a copy of the current snapshot.
func (c *Context[T]) Documents() []Doc[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Doc[T](nil), c.docs...)
}

// Filtered returns a copy of the filtered view.
func (c *Context[T]) Filtered() []Doc[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Doc[T](nil), c.filtered...)
}

// Trending returns a copy of the trending view.
func (c *Context[T]) Trending() []Doc[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Doc[T](nil), c.trending...)
}

// IsListening reports whether the realtime listener is live.
func (c *Context[T]) IsListening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// IsLoading reports whether any CRUD or fetch operation is in flight.
func (c *Context[T]) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0
}

func (c *Context[T]) beginLoading() {
	c.mu.Lock()
	c.loading++
	c.mu.Unlock()
}

func (c *Context[T]) endLoading() {
	c.mu.Lock()
	c.loading--
	c.mu.Unlock()
}

func (c *Context[T]) decode(raw docstore.Document) (Doc[T], error) {
	var data T
	if err := docstore.Decode(raw.Fields, &data); err != nil {
		return Doc[T]{}, err
	}
	docstore.SetIDField(&data, raw.ID)
	return Doc[T]{ID: raw.ID, Data: data, fields: raw.Fields}, nil
}

func (c *Context[T]) decodeAll(raw []docstore.Document) []Doc[T] {
	docs := make([]Doc[T], 0, len(raw))
	for _, r := range raw {
		doc, err := c.decode(r)
		if err != nil {
			// A malformed document must not take down the whole snapshot.
			c.surface.Handle(err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}
