// Package mongo provides a MongoDB implementation of the RemoteStore interface.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ersonp/bookspace/internal/domain/ports"
	"github.com/ersonp/bookspace/internal/infrastructure/config"
	"github.com/ersonp/bookspace/internal/infrastructure/remotestore/poll"
)

// Store implements ports.RemoteStore on MongoDB. Documents are keyed by _id;
// subscriptions use change streams and fall back to polling on servers
// without them.
type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	logger       *slog.Logger
	pollInterval time.Duration
}

// Connect establishes a connection to MongoDB and pings it.
func Connect(ctx context.Context, cfg config.MongoConfig, pollInterval time.Duration, logger *slog.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "connecting to MongoDB", "database", cfg.Database)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &Store{
		client:       client,
		db:           client.Database(cfg.Database),
		logger:       logger,
		pollInterval: pollInterval,
	}, nil
}

// EnsureSchema creates the indexes used by activity and task queries.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Collection(ports.ActivityCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("creating activity index: %w", err)
	}
	_, err = s.db.Collection(ports.TasksCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "sharedWith", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("creating tasks index: %w", err)
	}
	return nil
}

// GetDocument reads a document by key.
func (s *Store) GetDocument(ctx context.Context, collection, key string) (ports.Document, bool, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("finding %s/%s: %w", collection, key, err)
	}
	return toDocument(raw), true, nil
}

// SetDocument upserts a document. With merge only the given fields are set;
// otherwise the document is replaced.
func (s *Store) SetDocument(ctx context.Context, collection, key string, fields ports.Document, merge bool) error {
	coll := s.db.Collection(collection)
	filter := bson.D{{Key: "_id", Value: key}}

	if merge {
		_, err := coll.UpdateOne(ctx, filter, updateDoc(fields), options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("updating %s/%s: %w", collection, key, err)
		}
		return nil
	}

	_, err := coll.ReplaceOne(ctx, filter, replacementDoc(fields, time.Now().UTC()), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replacing %s/%s: %w", collection, key, err)
	}
	return nil
}

// AddDocument inserts a document with a new ObjectID. Server timestamps are
// assigned by MongoDB through $currentDate.
func (s *Store) AddDocument(ctx context.Context, collection string, fields ports.Document) (string, error) {
	id := primitive.NewObjectID()
	_, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		updateDoc(fields),
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return "", fmt.Errorf("inserting into %s: %w", collection, err)
	}
	return id.Hex(), nil
}

// DeleteDocument removes a document by key.
func (s *Store) DeleteDocument(ctx context.Context, collection, key string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, key, err)
	}
	return nil
}

// Query returns the documents matching q.
func (s *Store) Query(ctx context.Context, q ports.Query) ([]ports.Document, error) {
	cur, err := s.db.Collection(q.Collection).Find(ctx, filterDoc(q.Filters), findOptions(q))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	defer cur.Close(ctx)

	var rows []bson.M
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("reading %s: %w", q.Collection, err)
	}

	out := make([]ports.Document, len(rows))
	for i, row := range rows {
		out[i] = toDocument(row)
	}
	return out, nil
}

// SubscribeDocument delivers the document now and on every change.
func (s *Store) SubscribeDocument(ctx context.Context, collection, key string, fn func(ports.Document, bool)) (ports.Unsubscribe, error) {
	type snapshot struct {
		Doc   ports.Document
		Found bool
	}
	fetch := func(ctx context.Context) (snapshot, error) {
		doc, found, err := s.GetDocument(ctx, collection, key)
		return snapshot{Doc: doc, Found: found}, err
	}
	deliver := func(snap snapshot) { fn(snap.Doc, snap.Found) }

	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: key}}}}}
	return watchOrPoll(ctx, s, collection, pipeline, fetch, deliver)
}

// SubscribeQuery delivers the result set of q now and whenever the
// collection changes.
func (s *Store) SubscribeQuery(ctx context.Context, q ports.Query, fn func([]ports.Document)) (ports.Unsubscribe, error) {
	fetch := func(ctx context.Context) ([]ports.Document, error) {
		return s.Query(ctx, q)
	}
	return watchOrPoll(ctx, s, q.Collection, mongo.Pipeline{}, fetch, fn)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// watchOrPoll opens a change stream and re-fetches on every event. When the
// server does not support change streams it polls instead.
func watchOrPoll[T any](ctx context.Context, s *Store, collection string, pipeline mongo.Pipeline, fetch func(context.Context) (T, error), deliver func(T)) (ports.Unsubscribe, error) {
	first, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	stream, err := s.db.Collection(collection).Watch(watchCtx, pipeline)
	if err != nil {
		cancel()
		s.logger.DebugContext(ctx, "change streams unavailable, polling", "collection", collection, "error", err)
		return poll.Subscribe(ctx, s.pollInterval, s.logger, fetch, deliver), nil
	}

	var (
		mu      sync.Mutex
		stopped bool
	)
	emit := func(v T) {
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			deliver(v)
		}
	}

	emit(first)
	go func() {
		defer stream.Close(context.Background())
		for stream.Next(watchCtx) {
			snap, err := fetch(watchCtx)
			if err != nil {
				s.logger.WarnContext(watchCtx, "refreshing after change", "collection", collection, "error", err)
				continue
			}
			emit(snap)
		}
		if err := stream.Err(); err != nil && watchCtx.Err() == nil {
			s.logger.WarnContext(watchCtx, "change stream ended", "collection", collection, "error", err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			cancel()
		})
	}, nil
}

// updateDoc builds a $set update; ServerTimestamp fields become $currentDate.
func updateDoc(fields ports.Document) bson.D {
	set := bson.M{}
	current := bson.M{}
	for k, v := range fields {
		if ports.IsServerTimestamp(v) {
			current[k] = true
			continue
		}
		set[k] = v
	}

	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(current) > 0 {
		update = append(update, bson.E{Key: "$currentDate", Value: current})
	}
	return update
}

// replacementDoc resolves ServerTimestamp fields with now.
func replacementDoc(fields ports.Document, now time.Time) bson.M {
	out := bson.M{}
	for k, v := range fields {
		if ports.IsServerTimestamp(v) {
			out[k] = now
			continue
		}
		out[k] = v
	}
	return out
}

func filterDoc(filters []ports.Filter) bson.D {
	out := bson.D{}
	for _, f := range filters {
		if f.Op == ports.OpArrayContains {
			out = append(out, bson.E{Key: f.Field, Value: bson.D{{Key: "$elemMatch", Value: bson.D{{Key: "$eq", Value: f.Value}}}}})
			continue
		}
		out = append(out, bson.E{Key: f.Field, Value: f.Value})
	}
	return out
}

func findOptions(q ports.Query) *options.FindOptions {
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return opts
}

// toDocument converts a decoded BSON document to plain Go values and
// exposes _id as "id".
func toDocument(raw bson.M) ports.Document {
	doc := plain(raw).(map[string]any)
	if id, ok := doc["_id"]; ok {
		doc["id"] = id
		delete(doc, "_id")
	}
	return doc
}

func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		return plainMap(t)
	case map[string]any:
		return plainMap(t)
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case int32:
		return int64(t)
	default:
		return v
	}
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = plain(e)
	}
	return out
}
