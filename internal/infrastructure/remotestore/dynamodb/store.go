// Package dynamodb provides a DynamoDB implementation of the RemoteStore interface.
//
// Keyed documents live in the documents table under pk = "<collection>#<key>".
// Appended documents live in the activity table, partitioned by the owner
// field and sorted by the timestamp field, so queries must name the owner.
// Queries without an owner but with an array-contains filter scan the keyed
// documents of the collection instead.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/ersonp/bookspace/internal/domain/ports"
	"github.com/ersonp/bookspace/internal/infrastructure/config"
	"github.com/ersonp/bookspace/internal/infrastructure/remotestore/poll"
)

const (
	partitionKey = "pk"
	sortKey      = "sk"

	// OwnerField partitions appended documents.
	OwnerField = "userId"
	// TimestampField orders appended documents.
	TimestampField = "timestamp"
)

// ErrUnsupportedQuery is returned for queries the table layout cannot serve.
var ErrUnsupportedQuery = errors.New("unsupported dynamodb query")

// API is the subset of the DynamoDB client used by Store.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Store implements ports.RemoteStore on two DynamoDB tables.
type Store struct {
	api            API
	documentsTable string
	activityTable  string
	pollInterval   time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// New creates a Store using the default AWS credential chain.
func New(ctx context.Context, cfg config.DynamoDBConfig, pollInterval time.Duration, logger *slog.Logger) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithAPI(client, cfg, pollInterval, logger)
}

// NewWithAPI creates a Store on an existing client.
func NewWithAPI(api API, cfg config.DynamoDBConfig, pollInterval time.Duration, logger *slog.Logger) (*Store, error) {
	if cfg.DocumentsTable == "" || cfg.ActivityTable == "" {
		return nil, errors.New("dynamodb table names are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:            api,
		documentsTable: cfg.DocumentsTable,
		activityTable:  cfg.ActivityTable,
		pollInterval:   pollInterval,
		logger:         logger,
		now:            time.Now,
	}, nil
}

// EnsureSchema creates both tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.ensureTable(ctx, s.documentsTable, false); err != nil {
		return err
	}
	return s.ensureTable(ctx, s.activityTable, true)
}

func (s *Store) ensureTable(ctx context.Context, table string, sorted bool) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describing table %s: %w", table, err)
	}

	in := &dynamodb.CreateTableInput{
		TableName:   aws.String(table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(partitionKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(partitionKey), KeyType: types.KeyTypeHash},
		},
	}
	if sorted {
		in.AttributeDefinitions = append(in.AttributeDefinitions,
			types.AttributeDefinition{AttributeName: aws.String(sortKey), AttributeType: types.ScalarAttributeTypeS})
		in.KeySchema = append(in.KeySchema,
			types.KeySchemaElement{AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange})
	}

	s.logger.InfoContext(ctx, "creating dynamodb table", "table", table)
	if _, err := s.api.CreateTable(ctx, in); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.api)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, 2*time.Minute); err != nil {
		return fmt.Errorf("waiting for table %s: %w", table, err)
	}
	return nil
}

// GetDocument reads a document by key.
func (s *Store) GetDocument(ctx context.Context, collection, key string) (ports.Document, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.documentsTable),
		Key:            documentKey(collection, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("getting %s/%s: %w", collection, key, err)
	}
	if out.Item == nil {
		return nil, false, nil
	}

	doc, err := decodeItem(out.Item)
	if err != nil {
		return nil, false, fmt.Errorf("decoding %s/%s: %w", collection, key, err)
	}
	doc["id"] = key
	return doc, true, nil
}

// SetDocument writes a document. A merge becomes an UpdateItem that sets
// only the given fields; otherwise the item is replaced.
func (s *Store) SetDocument(ctx context.Context, collection, key string, fields ports.Document, merge bool) error {
	item, err := encodeFields(fields, s.now())
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", collection, key, err)
	}

	if !merge {
		for k, v := range documentKey(collection, key) {
			item[k] = v
		}
		_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.documentsTable),
			Item:      item,
		})
		if err != nil {
			return fmt.Errorf("putting %s/%s: %w", collection, key, err)
		}
		return nil
	}

	if len(item) == 0 {
		return nil
	}
	expr, names, values := updateExpression(item)
	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.documentsTable),
		Key:                       documentKey(collection, key),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("updating %s/%s: %w", collection, key, err)
	}
	return nil
}

// AddDocument appends a document to the activity table.
func (s *Store) AddDocument(ctx context.Context, collection string, fields ports.Document) (string, error) {
	now := s.now()
	item, err := encodeFields(fields, now)
	if err != nil {
		return "", fmt.Errorf("encoding %s entry: %w", collection, err)
	}

	id := uuid.NewString()
	owner, _ := fields[OwnerField].(string)
	ts := now.UnixMilli()
	if t, ok := fields[TimestampField].(time.Time); ok {
		ts = t.UnixMilli()
	}

	item[partitionKey] = &types.AttributeValueMemberS{Value: partition(collection, owner)}
	item[sortKey] = &types.AttributeValueMemberS{Value: fmt.Sprintf("%013d#%s", ts, id)}
	item["id"] = &types.AttributeValueMemberS{Value: id}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.activityTable),
		Item:      item,
	})
	if err != nil {
		return "", fmt.Errorf("adding %s entry: %w", collection, err)
	}
	return id, nil
}

// DeleteDocument removes a keyed document.
func (s *Store) DeleteDocument(ctx context.Context, collection, key string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.documentsTable),
		Key:       documentKey(collection, key),
	})
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, key, err)
	}
	return nil
}

// Query returns appended documents of one owner, ordered by timestamp, or
// the keyed documents matching an array-contains filter.
func (s *Store) Query(ctx context.Context, q ports.Query) ([]ports.Document, error) {
	if scansDocuments(q) {
		return s.scanDocuments(ctx, q)
	}

	in, err := s.queryInput(q)
	if err != nil {
		return nil, err
	}

	out, err := s.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}

	docs := make([]ports.Document, 0, len(out.Items))
	for _, item := range out.Items {
		doc, err := decodeItem(item)
		if err != nil {
			return nil, fmt.Errorf("decoding %s entry: %w", q.Collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) queryInput(q ports.Query) (*dynamodb.QueryInput, error) {
	var (
		owner    string
		hasOwner bool
		rest     []ports.Filter
	)
	for _, f := range q.Filters {
		if f.Field != OwnerField || f.Op != ports.OpEqual {
			rest = append(rest, f)
			continue
		}
		v, ok := f.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", ErrUnsupportedQuery, OwnerField)
		}
		if hasOwner {
			return nil, fmt.Errorf("%w: exactly one %s filter required", ErrUnsupportedQuery, OwnerField)
		}
		owner, hasOwner = v, true
	}
	if !hasOwner {
		return nil, fmt.Errorf("%w: exactly one %s filter required", ErrUnsupportedQuery, OwnerField)
	}
	if q.OrderBy != "" && q.OrderBy != TimestampField {
		return nil, fmt.Errorf("%w: can only order by %s", ErrUnsupportedQuery, TimestampField)
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.activityTable),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": partitionKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: partition(q.Collection, owner)},
		},
		ScanIndexForward: aws.Bool(!q.Descending),
	}

	// Other filters run after the key condition. DynamoDB applies Limit
	// before them, so a filtered page can hold fewer items.
	conds, err := filterConditions(rest, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if len(conds) > 0 {
		in.FilterExpression = aws.String(strings.Join(conds, " AND "))
	}

	if q.Limit > 0 {
		in.Limit = aws.Int32(int32(q.Limit))
	}
	return in, nil
}

// scansDocuments reports whether q targets keyed documents: it has an
// array-contains filter and no owner filter.
func scansDocuments(q ports.Query) bool {
	contains := false
	for _, f := range q.Filters {
		if f.Field == OwnerField && f.Op == ports.OpEqual {
			return false
		}
		if f.Op == ports.OpArrayContains {
			contains = true
		}
	}
	return contains
}

// scanDocuments reads every page of the scan. The limit is applied here
// since DynamoDB limits items read, not items matched.
func (s *Store) scanDocuments(ctx context.Context, q ports.Query) ([]ports.Document, error) {
	in, err := s.scanInput(q)
	if err != nil {
		return nil, err
	}

	prefix := partition(q.Collection, "")
	var docs []ports.Document
	for {
		out, err := s.api.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", q.Collection, err)
		}
		for _, item := range out.Items {
			pk, _ := item[partitionKey].(*types.AttributeValueMemberS)
			doc, err := decodeItem(item)
			if err != nil {
				return nil, fmt.Errorf("decoding %s document: %w", q.Collection, err)
			}
			if pk != nil {
				doc["id"] = strings.TrimPrefix(pk.Value, prefix)
			}
			docs = append(docs, doc)
			if q.Limit > 0 && len(docs) == q.Limit {
				return docs, nil
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return docs, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (s *Store) scanInput(q ports.Query) (*dynamodb.ScanInput, error) {
	if q.OrderBy != "" {
		return nil, fmt.Errorf("%w: cannot order a scan of %s", ErrUnsupportedQuery, q.Collection)
	}

	names := map[string]string{"#pk": partitionKey}
	values := map[string]types.AttributeValue{
		":prefix": &types.AttributeValueMemberS{Value: partition(q.Collection, "")},
	}
	conds, err := filterConditions(q.Filters, names, values)
	if err != nil {
		return nil, err
	}

	return &dynamodb.ScanInput{
		TableName:                 aws.String(s.documentsTable),
		FilterExpression:          aws.String(strings.Join(append([]string{"begins_with(#pk, :prefix)"}, conds...), " AND ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConsistentRead:            aws.Bool(true),
	}, nil
}

// filterConditions renders filters as "#aN = :aN" or "contains(#aN, :aN)"
// and registers their names and values.
func filterConditions(filters []ports.Filter, names map[string]string, values map[string]types.AttributeValue) ([]string, error) {
	conds := make([]string, 0, len(filters))
	for i, f := range filters {
		v, err := attributevalue.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: filter on %s: %v", ErrUnsupportedQuery, f.Field, err)
		}
		name, placeholder := fmt.Sprintf("#a%d", i), fmt.Sprintf(":a%d", i)
		names[name] = f.Field
		values[placeholder] = v
		if f.Op == ports.OpArrayContains {
			conds = append(conds, "contains("+name+", "+placeholder+")")
			continue
		}
		conds = append(conds, name+" = "+placeholder)
	}
	return conds, nil
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
	if scansDocuments(q) {
		if _, err := s.scanInput(q); err != nil {
			return nil, err
		}
	} else if _, err := s.queryInput(q); err != nil {
		return nil, err
	}
	fetch := func(ctx context.Context) ([]ports.Document, error) {
		return s.Query(ctx, q)
	}
	return poll.Subscribe(ctx, s.pollInterval, s.logger, fetch, fn), nil
}

// Close is a no-op; the AWS client holds no connection.
func (s *Store) Close() error {
	return nil
}

func partition(collection, key string) string {
	return collection + "#" + key
}

func documentKey(collection, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		partitionKey: &types.AttributeValueMemberS{Value: partition(collection, key)},
	}
}

// encodeFields marshals fields, storing times and ServerTimestamp as epoch
// milliseconds.
func encodeFields(fields ports.Document, now time.Time) (map[string]types.AttributeValue, error) {
	plain := make(map[string]any, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case time.Time:
			plain[k] = t.UnixMilli()
		default:
			if ports.IsServerTimestamp(v) {
				plain[k] = now.UnixMilli()
				continue
			}
			plain[k] = v
		}
	}
	return attributevalue.MarshalMap(plain)
}

func decodeItem(item map[string]types.AttributeValue) (ports.Document, error) {
	var doc map[string]any
	if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
		return nil, err
	}
	delete(doc, partitionKey)
	delete(doc, sortKey)
	return doc, nil
}

// updateExpression builds "SET #f0 = :v0, ..." over item in key order.
func updateExpression(item map[string]types.AttributeValue) (string, map[string]string, map[string]types.AttributeValue) {
	keys := make([]string, 0, len(item))
	for k := range item {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make(map[string]string, len(keys))
	values := make(map[string]types.AttributeValue, len(keys))
	parts := make([]string, len(keys))
	for i, k := range keys {
		name, value := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		names[name] = k
		values[value] = item[k]
		parts[i] = name + " = " + value
	}
	return "SET " + strings.Join(parts, ", "), names, values
}
