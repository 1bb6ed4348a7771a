package docstore

import (
	"context"
	"sync"
)

// Cached wraps a backing Store with a read-through cache, giving
// ReadOptions.FromCache real semantics on backends without a local cache.
// Server reads and subscription deliveries refresh the cache; writes go
// through to the backing store and update the cache; cache reads never touch
// the network and resolve misses as absence.
type Cached struct {
	backing    Store
	stampField string

	mu   sync.RWMutex
	docs map[string]map[string]map[string]interface{}
}

// NewCached creates a cache over the backing store.
func NewCached(backing Store) *Cached {
	return &Cached{
		backing:    backing,
		stampField: DefaultStampField,
		docs:       make(map[string]map[string]map[string]interface{}),
	}
}

// SetStampField aligns the cache's default query ordering with the backing
// store's stamp field.
func (c *Cached) SetStampField(field string) *Cached {
	c.stampField = field
	return c
}

func (c *Cached) NewID(collection string) string {
	return c.backing.NewID(collection)
}

func (c *Cached) GetDoc(ctx context.Context, collection, id string, ro ReadOptions) (*Document, error) {
	if ro.FromCache {
		c.mu.RLock()
		defer c.mu.RUnlock()
		fields, ok := c.docs[collection][id]
		if !ok {
			return nil, nil
		}
		doc := Document{ID: id, Fields: fields}.Clone()
		return &doc, nil
	}

	doc, err := c.backing.GetDoc(ctx, collection, id, ro)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if doc == nil {
		delete(c.docs[collection], id)
	} else {
		c.storeLocked(collection, *doc)
	}
	c.mu.Unlock()
	return doc, nil
}

func (c *Cached) GetDocs(ctx context.Context, collection string, q Query, ro ReadOptions) (QueryResult, error) {
	if ro.FromCache {
		c.mu.RLock()
		all := make([]Document, 0, len(c.docs[collection]))
		for id, fields := range c.docs[collection] {
			all = append(all, Document{ID: id, Fields: fields}.Clone())
		}
		c.mu.RUnlock()

		docs := evalQuery(all, q, c.stampField)
		var res QueryResult
		res.Docs = docs
		if len(docs) > 0 {
			res.First = &Cursor{Doc: docs[0].Clone()}
			res.Last = &Cursor{Doc: docs[len(docs)-1].Clone()}
		}
		return res, nil
	}

	res, err := c.backing.GetDocs(ctx, collection, q, ro)
	if err != nil {
		return QueryResult{}, err
	}
	c.mu.Lock()
	for _, doc := range res.Docs {
		c.storeLocked(collection, doc)
	}
	c.mu.Unlock()
	return res, nil
}

// Writes stamp before hitting the backing store, so the cache and the server
// hold the same stamp value for one document. The backing store sees the
// field already set and preserves it.

func (c *Cached) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	stamped := stampFields(fields, c.stampField)
	id, err := c.backing.Add(ctx, collection, stamped)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.storeLocked(collection, Document{ID: id, Fields: stamped})
	c.mu.Unlock()
	return id, nil
}

func (c *Cached) Set(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error {
	stamped := stampFields(fields, c.stampField)
	if err := c.backing.Set(ctx, collection, id, stamped, merge); err != nil {
		return err
	}
	c.mu.Lock()
	if existing, ok := c.docs[collection][id]; ok && merge {
		for k, v := range stamped {
			existing[k] = v
		}
	} else {
		c.storeLocked(collection, Document{ID: id, Fields: stamped})
	}
	c.mu.Unlock()
	return nil
}

func (c *Cached) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	stamped := stampFields(fields, c.stampField)
	if err := c.backing.Update(ctx, collection, id, stamped); err != nil {
		return err
	}
	c.mu.Lock()
	if existing, ok := c.docs[collection][id]; ok {
		for k, v := range stamped {
			existing[k] = v
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *Cached) Remove(ctx context.Context, collection, id string) error {
	if err := c.backing.Remove(ctx, collection, id); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.docs[collection], id)
	c.mu.Unlock()
	return nil
}

// Subscribe delegates to the backing store and tees every delivery into the
// cache.
func (c *Cached) Subscribe(ctx context.Context, collection string, q Query, onData func([]Document), onError func(error)) (Subscription, error) {
	teed := func(docs []Document) {
		c.mu.Lock()
		for _, doc := range docs {
			c.storeLocked(collection, doc)
		}
		c.mu.Unlock()
		onData(docs)
	}
	return c.backing.Subscribe(ctx, collection, q, teed, onError)
}

func (c *Cached) storeLocked(collection string, doc Document) {
	col, ok := c.docs[collection]
	if !ok {
		col = make(map[string]map[string]interface{})
		c.docs[collection] = col
	}
	col[doc.ID] = doc.Clone().Fields
}
