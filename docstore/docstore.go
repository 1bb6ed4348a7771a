// Package docstore is the gateway to the remote document store. It exposes
// collection CRUD, query construction, and realtime subscriptions behind a
// backend-neutral Store interface with Firestore, in-memory, and cached
// implementations.
package docstore

import (
	"context"
	"time"
)

// DefaultStampField is the field stamped onto written documents when the
// caller did not supply it. Default ordering uses the same field.
const DefaultStampField = "timestamp"

// Document is one record in a collection: the store-assigned identifier plus
// the raw field values. The identifier is never part of Fields.
type Document struct {
	ID     string
	Fields map[string]interface{}
}

// Clone returns a shallow-field copy of the document, so callers can hold on
// to results without aliasing store internals.
func (d Document) Clone() Document {
	fields := make(map[string]interface{}, len(d.Fields))
	for k, v := range d.Fields {
		fields[k] = v
	}
	return Document{ID: d.ID, Fields: fields}
}

// ReadOptions selects the data source for a read.
type ReadOptions struct {
	// FromCache serves the read from the local cache instead of the server.
	// Cache misses resolve to absence, never to an error.
	FromCache bool
}

// QueryResult is an ordered result set plus the cursor markers needed for
// follow-up pagination queries.
type QueryResult struct {
	Docs  []Document
	First *Cursor
	Last  *Cursor
}

// Subscription is the handle for an active realtime channel.
type Subscription interface {
	// Unsubscribe releases the channel. It is idempotent, and no delivery is
	// made to the callbacks after it returns.
	Unsubscribe()
}

// Store is the document store gateway. Every result set is delivered in full
// (never as a diff), and all failures are *Error values carrying a Kind and a
// service-prefixed code.
type Store interface {
	// NewID pre-allocates a document identifier in the collection without
	// writing anything.
	NewID(collection string) string

	// GetDoc fetches a single document. Absence is (nil, nil).
	GetDoc(ctx context.Context, collection, id string, ro ReadOptions) (*Document, error)

	// GetDocs fetches the documents matching q, in query order, with cursor
	// markers for pagination.
	GetDocs(ctx context.Context, collection string, q Query, ro ReadOptions) (QueryResult, error)

	// Add creates a document with a store-assigned identifier and returns it.
	Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error)

	// Set upserts at a caller-chosen identifier. With merge, fields are merged
	// into any existing document; without, the document is replaced.
	Set(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error

	// Update partially updates an existing document. Fails with NotFound if
	// the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error

	// Remove deletes a document. Deleting a nonexistent document is not an
	// error.
	Remove(ctx context.Context, collection, id string) error

	// Subscribe opens a realtime channel for q. onData receives the full
	// current result set on every change, starting with the initial one.
	// onError receives asynchronous store failures; after an error the channel
	// is dead and delivers nothing further.
	Subscribe(ctx context.Context, collection string, q Query, onData func([]Document), onError func(error)) (Subscription, error)
}

// GetDocsByID fetches multiple documents by identifier. Missing documents are
// omitted from the result.
func GetDocsByID(ctx context.Context, s Store, collection string, ids []string, ro ReadOptions) ([]Document, error) {
	docs := make([]Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.GetDoc(ctx, collection, id, ro)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

// Page is one page of a paginated query.
type Page struct {
	Docs    []Document
	First   *Cursor
	Last    *Cursor
	HasMore bool
}

// GetPage runs q limited to pageSize documents starting after the given
// cursor. It probes one document past the page to report whether more pages
// exist.
func GetPage(ctx context.Context, s Store, collection string, q Query, pageSize int, after *Cursor, ro ReadOptions) (Page, error) {
	q.Limit = pageSize + 1
	q.StartAfter = after
	res, err := s.GetDocs(ctx, collection, q, ro)
	if err != nil {
		return Page{}, err
	}
	page := Page{Docs: res.Docs, First: res.First, Last: res.Last}
	if len(res.Docs) > pageSize {
		page.HasMore = true
		page.Docs = res.Docs[:pageSize]
		page.Last = &Cursor{Doc: page.Docs[pageSize-1].Clone()}
	}
	return page, nil
}

// stampFields returns a copy of fields with the stamp field set to the
// current time in epoch milliseconds, unless the caller already supplied it
// or stamping is disabled.
func stampFields(fields map[string]interface{}, stampField string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	if stampField == "" {
		return out
	}
	if _, ok := out[stampField]; !ok {
		out[stampField] = time.Now().UnixMilli()
	}
	return out
}
