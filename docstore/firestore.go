package docstore

import (
	"context"
	"sync/atomic"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore is the Firestore-backed Store.
//
// The Go client has no mobile-SDK local cache, so ReadOptions.FromCache is
// served from the server here; wrap the store in Cached for real cache
// semantics.
type Firestore struct {
	client     *firestore.Client
	stampField string
}

// NewFirestore creates a Firestore store over an existing client. Writes
// stamp DefaultStampField unless reconfigured via SetStampField.
func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client, stampField: DefaultStampField}
}

// SetStampField changes the field stamped onto writes and used for default
// ordering. An empty name disables stamping.
func (s *Firestore) SetStampField(field string) *Firestore {
	s.stampField = field
	return s
}

// Close closes the underlying client.
func (s *Firestore) Close() error {
	return s.client.Close()
}

func (s *Firestore) NewID(collection string) string {
	return s.client.Collection(collection).NewDoc().ID
}

func (s *Firestore) buildQuery(collection string, q Query) firestore.Query {
	q = q.normalized(s.stampField)

	fq := s.client.Collection(collection).Query
	dir := firestore.Asc
	if q.OrderDesc {
		dir = firestore.Desc
	}
	fq = fq.OrderBy(q.OrderField, dir)
	for _, w := range q.Where {
		fq = fq.Where(w.Field, w.Op, w.Value)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	if q.StartAfter != nil {
		fq = fq.StartAfter(q.StartAfter.orderValue(q.OrderField))
	}
	if q.EndBefore != nil {
		fq = fq.EndBefore(q.EndBefore.orderValue(q.OrderField))
	}
	return fq
}

func (s *Firestore) GetDoc(ctx context.Context, collection, id string, _ ReadOptions) (*Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "get document")
	}
	doc := Document{ID: snap.Ref.ID, Fields: snap.Data()}
	return &doc, nil
}

func (s *Firestore) GetDocs(ctx context.Context, collection string, q Query, _ ReadOptions) (QueryResult, error) {
	iter := s.buildQuery(collection, q).Documents(ctx)
	defer iter.Stop()

	var res QueryResult
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return QueryResult{}, classify(err, "get documents")
		}
		res.Docs = append(res.Docs, Document{ID: snap.Ref.ID, Fields: snap.Data()})
	}
	if len(res.Docs) > 0 {
		res.First = &Cursor{Doc: res.Docs[0].Clone()}
		res.Last = &Cursor{Doc: res.Docs[len(res.Docs)-1].Clone()}
	}
	return res, nil
}

func (s *Firestore) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, stampFields(fields, s.stampField))
	if err != nil {
		return "", classify(err, "add document")
	}
	return ref.ID, nil
}

func (s *Firestore) Set(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error {
	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, stampFields(fields, s.stampField), opts...)
	if err != nil {
		return classify(err, "set document")
	}
	return nil
}

func (s *Firestore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	stamped := stampFields(fields, s.stampField)
	updates := make([]firestore.Update, 0, len(stamped))
	for path, value := range stamped {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, updates)
	if err != nil {
		return classify(err, "update document")
	}
	return nil
}

func (s *Firestore) Remove(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return classify(err, "remove document")
	}
	return nil
}

// Subscribe opens a snapshot listener on the query. Deliveries run on a
// dedicated goroutine; after Unsubscribe returns no further callback fires.
func (s *Firestore) Subscribe(ctx context.Context, collection string, q Query, onData func([]Document), onError func(error)) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	snaps := s.buildQuery(collection, q).Snapshots(ctx)

	sub := &firestoreSubscription{cancel: cancel, snaps: snaps}
	go sub.run(onData, onError)
	return sub, nil
}

type firestoreSubscription struct {
	cancel  context.CancelFunc
	snaps   *firestore.QuerySnapshotIterator
	stopped atomic.Bool
}

func (s *firestoreSubscription) run(onData func([]Document), onError func(error)) {
	for {
		snap, err := s.snaps.Next()
		if err != nil {
			// Cancellation is unsubscription, not a failure.
			if s.stopped.Load() || status.Code(err) == codes.Canceled {
				return
			}
			onError(classify(err, "listen"))
			return
		}

		docs := make([]Document, 0, snap.Size)
		failed := false
		for {
			doc, err := snap.Documents.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				if !s.stopped.Load() {
					onError(classify(err, "listen"))
				}
				failed = true
				break
			}
			docs = append(docs, Document{ID: doc.Ref.ID, Fields: doc.Data()})
		}
		if failed {
			return
		}
		if s.stopped.Load() {
			return
		}
		onData(docs)
	}
}

func (s *firestoreSubscription) Unsubscribe() {
	if s.stopped.CompareAndSwap(false, true) {
		s.cancel()
		s.snaps.Stop()
	}
}
