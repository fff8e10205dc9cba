package qdrant

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ersonp/bookspace/internal/domain/ports"
)

type fakeCollections struct {
	pb.CollectionsClient
	existing map[string]bool
	created  []string
}

func (f *fakeCollections) Get(_ context.Context, in *pb.GetCollectionInfoRequest, _ ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error) {
	if !f.existing[in.CollectionName] {
		return nil, status.Error(codes.NotFound, "collection not found")
	}
	return &pb.GetCollectionInfoResponse{}, nil
}

func (f *fakeCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.existing[in.CollectionName] = true
	f.created = append(f.created, in.CollectionName)
	return &pb.CollectionOperationResponse{Result: true}, nil
}

type fakePoints struct {
	pb.PointsClient
	mu         sync.Mutex
	points     map[string]map[string]map[string]*pb.Value // collection -> uuid -> payload
	order      map[string][]string
	indexes    []string
	setPayload int
}

func newFakePoints() *fakePoints {
	return &fakePoints{
		points: make(map[string]map[string]map[string]*pb.Value),
		order:  make(map[string][]string),
	}
}

func (f *fakePoints) Get(_ context.Context, in *pb.GetPoints, _ ...grpc.CallOption) (*pb.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*pb.RetrievedPoint
	for _, id := range in.Ids {
		if payload, ok := f.points[in.CollectionName][id.GetUuid()]; ok {
			out = append(out, &pb.RetrievedPoint{Id: id, Payload: payload})
		}
	}
	return &pb.GetResponse{Result: out}, nil
}

func (f *fakePoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.points[in.CollectionName] == nil {
		f.points[in.CollectionName] = make(map[string]map[string]*pb.Value)
	}
	for _, p := range in.Points {
		id := p.Id.GetUuid()
		if _, ok := f.points[in.CollectionName][id]; !ok {
			f.order[in.CollectionName] = append(f.order[in.CollectionName], id)
		}
		f.points[in.CollectionName][id] = p.Payload
	}
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) SetPayload(_ context.Context, in *pb.SetPayloadPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setPayload++
	for _, id := range in.PointsSelector.GetPoints().GetIds() {
		payload := f.points[in.CollectionName][id.GetUuid()]
		for k, v := range in.Payload {
			payload[k] = v
		}
	}
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range in.Points.GetPoints().GetIds() {
		delete(f.points[in.CollectionName], id.GetUuid())
		order := f.order[in.CollectionName][:0]
		for _, kept := range f.order[in.CollectionName] {
			if kept != id.GetUuid() {
				order = append(order, kept)
			}
		}
		f.order[in.CollectionName] = order
	}
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Scroll(_ context.Context, in *pb.ScrollPoints, _ ...grpc.CallOption) (*pb.ScrollResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*pb.RetrievedPoint
	for _, id := range f.order[in.CollectionName] {
		payload := f.points[in.CollectionName][id]
		if matches(payload, in.Filter) {
			out = append(out, &pb.RetrievedPoint{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}, Payload: payload})
		}
	}
	if ob := in.OrderBy; ob != nil {
		sort.SliceStable(out, func(i, j int) bool {
			a := out[i].Payload[ob.Key].GetIntegerValue()
			b := out[j].Payload[ob.Key].GetIntegerValue()
			if ob.GetDirection() == pb.Direction_Desc {
				return a > b
			}
			return a < b
		})
	}
	if limit := int(in.GetLimit()); limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return &pb.ScrollResponse{Result: out}, nil
}

func (f *fakePoints) CreateFieldIndex(_ context.Context, in *pb.CreateFieldIndexCollection, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexes = append(f.indexes, in.CollectionName+"."+in.FieldName)
	return &pb.PointsOperationResponse{}, nil
}

func matches(payload map[string]*pb.Value, filter *pb.Filter) bool {
	for _, cond := range filter.GetMust() {
		field := cond.GetField()
		v := payload[field.Key]
		switch m := field.Match.MatchValue.(type) {
		case *pb.Match_Keyword:
			if !keywordMatch(v, m.Keyword) {
				return false
			}
		case *pb.Match_Integer:
			if v.GetIntegerValue() != m.Integer {
				return false
			}
		}
	}
	return true
}

// keywordMatch matches a string payload or any string element of a list.
func keywordMatch(v *pb.Value, keyword string) bool {
	if list := v.GetListValue(); list != nil {
		for _, e := range list.GetValues() {
			if e.GetStringValue() == keyword {
				return true
			}
		}
		return false
	}
	return v.GetStringValue() == keyword
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(existing ...string) (*Store, *fakeCollections, *fakePoints) {
	collections := &fakeCollections{existing: make(map[string]bool)}
	for _, c := range existing {
		collections.existing[c] = true
	}
	points := newFakePoints()
	store := newStore(collections, points, 10*time.Millisecond, nil)
	store.now = func() time.Time { return testNow }
	return store, collections, points
}

func TestStore_EnsureSchema(t *testing.T) {
	store, collections, points := newTestStore(ports.UsersDataCollection)

	require.NoError(t, store.EnsureSchema(context.Background()))

	assert.Equal(t, []string{ports.ActivityCollection, ports.TasksCollection}, collections.created)
	assert.Equal(t, []string{"activity_logs.userId", "activity_logs.timestamp", "tasks.sharedWith"}, points.indexes)
}

func TestStore_SetDocument(t *testing.T) {
	store, _, points := newTestStore()
	ctx := context.Background()

	_, found, err := store.GetDocument(ctx, ports.UsersDataCollection, "u1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetDocument(ctx, ports.UsersDataCollection, "u1", ports.Document{
		"clients": []any{map[string]any{"id": "c1", "total": 12.5}},
		"version": int64(1),
	}, true))
	assert.Equal(t, 0, points.setPayload, "first merge creates the point")

	require.NoError(t, store.SetDocument(ctx, ports.UsersDataCollection, "u1", ports.Document{
		"version":   int64(2),
		"updatedAt": ports.ServerTimestamp,
	}, true))
	assert.Equal(t, 1, points.setPayload)

	doc, found, err := store.GetDocument(ctx, ports.UsersDataCollection, "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "u1", doc["id"])
	assert.Equal(t, int64(2), doc["version"])
	assert.Equal(t, testNow.UnixMilli(), doc["updatedAt"])
	assert.Equal(t, []any{map[string]any{"id": "c1", "total": 12.5}}, doc["clients"])
	assert.NotContains(t, doc, keyField)

	require.NoError(t, store.SetDocument(ctx, ports.UsersDataCollection, "u1", ports.Document{"version": int64(3)}, false))
	doc, _, err = store.GetDocument(ctx, ports.UsersDataCollection, "u1")
	require.NoError(t, err)
	assert.NotContains(t, doc, "clients")
}

func TestStore_AddAndQuery(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	for i, desc := range []string{"a", "b", "c"} {
		_, err := store.AddDocument(ctx, ports.ActivityCollection, ports.Document{
			"userId":      "u1",
			"description": desc,
			"timestamp":   testNow.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	_, err := store.AddDocument(ctx, ports.ActivityCollection, ports.Document{"userId": "u2", "timestamp": ports.ServerTimestamp})
	require.NoError(t, err)

	docs, err := store.Query(ctx, ports.Query{
		Collection: ports.ActivityCollection,
		Filters:    []ports.Filter{{Field: "userId", Value: "u1"}},
		OrderBy:    "timestamp",
		Descending: true,
		Limit:      2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c", docs[0]["description"])
	assert.Equal(t, "b", docs[1]["description"])
	assert.NotEmpty(t, docs[0]["id"])
}

func TestStore_SharedDocuments(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.SetDocument(ctx, ports.TasksCollection, "t1", ports.Document{"sharedWith": []any{"u1", "u2"}}, true))
	require.NoError(t, store.SetDocument(ctx, ports.TasksCollection, "t2", ports.Document{"sharedWith": []any{"u2"}}, true))

	q := ports.Query{
		Collection: ports.TasksCollection,
		Filters:    []ports.Filter{{Field: "sharedWith", Op: ports.OpArrayContains, Value: "u1"}},
	}
	docs, err := store.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "t1", docs[0]["id"])

	require.NoError(t, store.DeleteDocument(ctx, ports.TasksCollection, "t1"))
	docs, err = store.Query(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, docs)

	_, found, err := store.GetDocument(ctx, ports.TasksCollection, "t1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_QueryRejectsUnsupportedFilter(t *testing.T) {
	store, _, _ := newTestStore()

	_, err := store.Query(context.Background(), ports.Query{
		Collection: ports.ActivityCollection,
		Filters:    []ports.Filter{{Field: "score", Value: 1.5}},
	})
	assert.Error(t, err)
}

func TestStore_SubscribeDocument(t *testing.T) {
	store, _, _ := newTestStore()
	ctx := context.Background()

	var (
		mu     sync.Mutex
		states []bool
	)
	unsub, err := store.SubscribeDocument(ctx, ports.UsersDataCollection, "u1", func(_ ports.Document, found bool) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, found)
	})
	require.NoError(t, err)
	defer unsub()

	// The first poll runs asynchronously; write only after it delivered.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, store.SetDocument(ctx, ports.UsersDataCollection, "u1", ports.Document{"version": int64(1)}, true))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 2 && !states[0] && states[len(states)-1]
	}, time.Second, 5*time.Millisecond)
}

func TestValueConversion(t *testing.T) {
	in := map[string]any{
		"s":    "x",
		"b":    true,
		"i":    7,
		"f":    1.5,
		"nil":  nil,
		"list": []any{"a", int64(2)},
		"obj":  ports.Document{"k": "v"},
		"at":   testNow,
	}

	v, err := toValue(in)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"s":    "x",
		"b":    true,
		"i":    int64(7),
		"f":    1.5,
		"nil":  nil,
		"list": []any{"a", int64(2)},
		"obj":  map[string]any{"k": "v"},
		"at":   testNow.UnixMilli(),
	}, fromValue(v))

	_, err = toValue(struct{}{})
	assert.Error(t, err)
}

func TestPointID_Deterministic(t *testing.T) {
	a := pointID(ports.UsersDataCollection, "u1").GetUuid()
	assert.Equal(t, a, pointID(ports.UsersDataCollection, "u1").GetUuid())
	assert.NotEqual(t, a, pointID(ports.UsersDataCollection, "u2").GetUuid())
	assert.NotEqual(t, a, pointID(ports.ActivityCollection, "u1").GetUuid())
}
