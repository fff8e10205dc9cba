// Package qdrant provides a RemoteStore implementation using Qdrant payloads.
//
// Every remote collection maps to a Qdrant collection. Documents are points
// whose payload holds the fields; keyed documents get a point id derived
// from their key. Times are stored as epoch milliseconds so they can be
// ordered through an integer payload index.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ersonp/bookspace/internal/domain/ports"
	"github.com/ersonp/bookspace/internal/infrastructure/config"
	"github.com/ersonp/bookspace/internal/infrastructure/remotestore/poll"
)

const (
	// keyField holds the document key inside the payload.
	keyField = "_key"
	// scrollLimit caps queries without an explicit limit.
	scrollLimit = 10000
)

// keyNamespace seeds the deterministic point ids of keyed documents.
var keyNamespace = uuid.MustParse("6f1d2a8e-51c4-4b0e-9d8a-3c2b7e4f9a10")

// placeholderVector is stored on every point; the collections are used for
// their payloads only.
var placeholderVector = []float32{1}

// index describes a payload index created by EnsureSchema.
type index struct {
	collection string
	field      string
	fieldType  pb.FieldType
}

var schemaIndexes = []index{
	{collection: ports.ActivityCollection, field: "userId", fieldType: pb.FieldType_FieldTypeKeyword},
	{collection: ports.ActivityCollection, field: "timestamp", fieldType: pb.FieldType_FieldTypeInteger},
	{collection: ports.TasksCollection, field: "sharedWith", fieldType: pb.FieldType_FieldTypeKeyword},
}

// Store implements ports.RemoteStore using Qdrant.
type Store struct {
	collections  pb.CollectionsClient
	points       pb.PointsClient
	conn         *grpc.ClientConn
	logger       *slog.Logger
	pollInterval time.Duration
	now          func() time.Time
}

// NewStore creates a new Qdrant store.
func NewStore(cfg config.QdrantConfig, pollInterval time.Duration, logger *slog.Logger) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	store := newStore(pb.NewCollectionsClient(conn), pb.NewPointsClient(conn), pollInterval, logger)
	store.conn = conn
	return store, nil
}

func newStore(collections pb.CollectionsClient, points pb.PointsClient, pollInterval time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		collections:  collections,
		points:       points,
		logger:       logger,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// Close closes the gRPC connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// EnsureSchema creates the collections and payload indexes if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, name := range []string{ports.UsersDataCollection, ports.ActivityCollection, ports.TasksCollection} {
		if err := s.ensureCollection(ctx, name); err != nil {
			return err
		}
	}

	for _, idx := range schemaIndexes {
		_, err := s.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: idx.collection,
			FieldName:      idx.field,
			FieldType:      idx.fieldType.Enum(),
			Wait:           pb.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("creating index %s.%s: %w", idx.collection, idx.field, err)
		}
	}
	return nil
}

func (s *Store) ensureCollection(ctx context.Context, name string) error {
	_, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: name,
	})
	if err == nil {
		return nil
	}

	s.logger.InfoContext(ctx, "creating qdrant collection", "collection", name)
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(len(placeholderVector)),
					Distance: pb.Distance_Dot,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	return nil
}

// GetDocument reads a document by key.
func (s *Store) GetDocument(ctx context.Context, collection, key string) (ports.Document, bool, error) {
	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: collection,
		Ids:            []*pb.PointId{pointID(collection, key)},
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if status.Code(err) == codes.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting point %s/%s: %w", collection, key, err)
	}
	if len(resp.Result) == 0 {
		return nil, false, nil
	}
	return pointToDocument(resp.Result[0]), true, nil
}

// SetDocument writes a document. A merge into an existing point only sets
// the given payload fields.
func (s *Store) SetDocument(ctx context.Context, collection, key string, fields ports.Document, merge bool) error {
	payload, err := toPayload(fields, s.now())
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", collection, key, err)
	}
	payload[keyField] = stringValue(key)

	if merge {
		_, found, err := s.GetDocument(ctx, collection, key)
		if err != nil {
			return err
		}
		if found {
			_, err = s.points.SetPayload(ctx, &pb.SetPayloadPoints{
				CollectionName: collection,
				Wait:           pb.PtrOf(true),
				Payload:        payload,
				PointsSelector: &pb.PointsSelector{
					PointsSelectorOneOf: &pb.PointsSelector_Points{
						Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(collection, key)}},
					},
				},
			})
			if err != nil {
				return fmt.Errorf("setting payload %s/%s: %w", collection, key, err)
			}
			return nil
		}
	}

	return s.upsert(ctx, collection, pointID(collection, key), payload)
}

// AddDocument stores a document under a random point id.
func (s *Store) AddDocument(ctx context.Context, collection string, fields ports.Document) (string, error) {
	payload, err := toPayload(fields, s.now())
	if err != nil {
		return "", fmt.Errorf("encoding %s entry: %w", collection, err)
	}

	id := uuid.New().String()
	if err := s.upsert(ctx, collection, &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}, payload); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) upsert(ctx context.Context, collection string, id *pb.PointId, payload map[string]*pb.Value) error {
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Wait:           pb.PtrOf(true),
		Points: []*pb.PointStruct{
			{
				Id: id,
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{
						Vector: &pb.Vector{Data: placeholderVector},
					},
				},
				Payload: payload,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upserting point in %s: %w", collection, err)
	}
	return nil
}

// DeleteDocument removes the point of a keyed document.
func (s *Store) DeleteDocument(ctx context.Context, collection, key string) error {
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: collection,
		Wait:           pb.PtrOf(true),
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(collection, key)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting point %s/%s: %w", collection, key, err)
	}
	return nil
}

// Query scrolls the points matching q.
func (s *Store) Query(ctx context.Context, q ports.Query) ([]ports.Document, error) {
	req, err := scrollRequest(q)
	if err != nil {
		return nil, err
	}

	resp, err := s.points.Scroll(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scrolling %s: %w", q.Collection, err)
	}

	docs := make([]ports.Document, 0, len(resp.Result))
	for _, point := range resp.Result {
		docs = append(docs, pointToDocument(point))
	}
	return docs, nil
}

// SubscribeDocument polls the document.
func (s *Store) SubscribeDocument(ctx context.Context, collection, key string, fn func(ports.Document, bool)) (ports.Unsubscribe, error) {
	type snapshot struct {
		Doc   ports.Document
		Found bool
	}
	fetch := func(ctx context.Context) (snapshot, error) {
		doc, found, err := s.GetDocument(ctx, collection, key)
		return snapshot{Doc: doc, Found: found}, err
	}
	return poll.Subscribe(ctx, s.pollInterval, s.logger, fetch, func(snap snapshot) {
		fn(snap.Doc, snap.Found)
	}), nil
}

// SubscribeQuery polls the query.
func (s *Store) SubscribeQuery(ctx context.Context, q ports.Query, fn func([]ports.Document)) (ports.Unsubscribe, error) {
	if _, err := scrollRequest(q); err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context) ([]ports.Document, error) {
		return s.Query(ctx, q)
	}
	return poll.Subscribe(ctx, s.pollInterval, s.logger, fetch, fn), nil
}

// pointID derives a stable point id from a document key.
func pointID(collection, key string) *pb.PointId {
	id := uuid.NewSHA1(keyNamespace, []byte(collection+"/"+key))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id.String()}}
}

func scrollRequest(q ports.Query) (*pb.ScrollPoints, error) {
	limit := uint32(scrollLimit)
	if q.Limit > 0 {
		limit = uint32(q.Limit)
	}

	req := &pb.ScrollPoints{
		CollectionName: q.Collection,
		Limit:          pb.PtrOf(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: false},
		},
	}

	// A match on an array payload holds when any element matches, so
	// OpArrayContains needs no condition of its own.
	if len(q.Filters) > 0 {
		must := make([]*pb.Condition, 0, len(q.Filters))
		for _, f := range q.Filters {
			match, err := matchFor(f.Value)
			if err != nil {
				return nil, fmt.Errorf("filter on %s: %w", f.Field, err)
			}
			must = append(must, &pb.Condition{
				ConditionOneOf: &pb.Condition_Field{
					Field: &pb.FieldCondition{Key: f.Field, Match: match},
				},
			})
		}
		req.Filter = &pb.Filter{Must: must}
	}

	if q.OrderBy != "" {
		dir := pb.Direction_Asc
		if q.Descending {
			dir = pb.Direction_Desc
		}
		req.OrderBy = &pb.OrderBy{Key: q.OrderBy, Direction: dir.Enum()}
	}
	return req, nil
}

func matchFor(v any) (*pb.Match, error) {
	switch t := v.(type) {
	case string:
		return &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: t}}, nil
	case bool:
		return &pb.Match{MatchValue: &pb.Match_Boolean{Boolean: t}}, nil
	case int:
		return &pb.Match{MatchValue: &pb.Match_Integer{Integer: int64(t)}}, nil
	case int64:
		return &pb.Match{MatchValue: &pb.Match_Integer{Integer: t}}, nil
	default:
		return nil, fmt.Errorf("unsupported match value %T", v)
	}
}

// pointToDocument converts a Qdrant point to a document carrying its id.
func pointToDocument(point *pb.RetrievedPoint) ports.Document {
	doc := make(ports.Document, len(point.Payload)+1)
	for k, v := range point.Payload {
		doc[k] = fromValue(v)
	}

	if key, ok := doc[keyField].(string); ok {
		doc["id"] = key
		delete(doc, keyField)
	} else if id := point.Id.GetUuid(); id != "" {
		doc["id"] = id
	}
	return doc
}

// toPayload converts fields to Qdrant values. ServerTimestamp becomes now.
func toPayload(fields ports.Document, now time.Time) (map[string]*pb.Value, error) {
	payload := make(map[string]*pb.Value, len(fields))
	for k, v := range fields {
		if ports.IsServerTimestamp(v) {
			v = now
		}
		val, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		payload[k] = val
	}
	return payload, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func toValue(v any) (*pb.Value, error) {
	switch t := v.(type) {
	case nil:
		return &pb.Value{Kind: &pb.Value_NullValue{NullValue: pb.NullValue_NULL_VALUE}}, nil
	case string:
		return stringValue(t), nil
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: t}}, nil
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(t)}}, nil
	case int32:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(t)}}, nil
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: t}}, nil
	case float32:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: float64(t)}}, nil
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: t}}, nil
	case time.Time:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: t.UnixMilli()}}, nil
	case ports.Document:
		return toValue(map[string]any(t))
	case map[string]any:
		fields := make(map[string]*pb.Value, len(t))
		for k, e := range t {
			val, err := toValue(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			fields[k] = val
		}
		return &pb.Value{Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: fields}}}, nil
	case []any:
		values := make([]*pb.Value, len(t))
		for i, e := range t {
			val, err := toValue(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			values[i] = val
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: values}}}, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func fromValue(v *pb.Value) any {
	switch k := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue
	case *pb.Value_BoolValue:
		return k.BoolValue
	case *pb.Value_IntegerValue:
		return k.IntegerValue
	case *pb.Value_DoubleValue:
		return k.DoubleValue
	case *pb.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.GetFields()))
		for name, field := range k.StructValue.GetFields() {
			out[name] = fromValue(field)
		}
		return out
	case *pb.Value_ListValue:
		out := make([]any, len(k.ListValue.GetValues()))
		for i, e := range k.ListValue.GetValues() {
			out[i] = fromValue(e)
		}
		return out
	default:
		return nil
	}
}
