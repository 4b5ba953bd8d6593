// Package dynamokv implements kv.Store on a single DynamoDB table.
//
// # Table Layout
//
//	pk  (S, HASH)   tenant prefix, e.g. "kim_2e_d63b7658/"
//	sk  (S, RANGE)  "#" + remainder of the key, e.g. "#trip-1/_summary"
//	v   (B)         value
//	ttl (N)         optional expiry, unix seconds (DynamoDB TTL attribute)
//
// Listing a prefix that contains "/" is a single-partition Query; any other
// prefix falls back to a filtered Scan. Reads are eventually consistent
// unless [Config.ConsistentRead] is set.
package dynamokv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/itinera/internal/partition"
	"github.com/jacentio/itinera/kv"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Config holds configuration for the Store.
type Config struct {
	// Table is the DynamoDB table name.
	// Default: "itinera"
	Table string `yaml:"table"`

	// ConsistentRead requests strongly consistent reads for Get and Query.
	// Default: false (eventually consistent, half the read cost)
	ConsistentRead bool `yaml:"consistent_read"`
}

// DefaultConfig returns the default table settings.
func DefaultConfig() Config {
	return Config{Table: "itinera"}
}

// validate ensures config values are usable.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "itinera"
	}
}

// record is the stored item shape.
type record struct {
	PK    string `dynamodbav:"pk"`
	SK    string `dynamodbav:"sk"`
	Value []byte `dynamodbav:"v"`
	TTL   int64  `dynamodbav:"ttl,omitempty"`
}

// Store is a kv.Store backed by DynamoDB.
type Store struct {
	client API
	config Config
	now    func() time.Time
}

var _ kv.Store = (*Store)(nil)

// New creates a new Store instance.
func New(client API, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// Table returns the table the store reads and writes.
func (s *Store) Table() string { return s.config.Table }

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.Table),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(s.config.ConsistentRead),
	})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	if result.Item == nil || IsExpired(result.Item, s.now()) {
		return nil, kv.ErrNotFound
	}

	var rec record
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("get %q: unmarshal item: %w", key, err)
	}
	return rec.Value, nil
}

// Put implements kv.Store.
func (s *Store) Put(ctx context.Context, key string, value []byte, opts kv.PutOptions) error {
	pk, sk := partition.Split(key)
	rec := record{PK: pk, SK: sk, Value: value}
	if opts.TTL > 0 {
		rec.TTL = expiresAt(s.now(), opts.TTL)
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("put %q: marshal item: %w", key, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.Table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.Table),
		Key:       itemKey(key),
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// List implements kv.Store. The cursor is the name of the last evaluated key.
// A page may hold fewer than Limit keys, or none, while Complete is false:
// DynamoDB applies the limit before filtering out expired items.
func (s *Store) List(ctx context.Context, opts kv.ListOptions) (kv.ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = kv.DefaultPageSize
	}

	var startKey map[string]types.AttributeValue
	if opts.Cursor != "" {
		startKey = itemKey(opts.Cursor)
	}

	now := s.now()
	var (
		items   []map[string]types.AttributeValue
		lastKey map[string]types.AttributeValue
	)

	if partition.Queryable(opts.Prefix) {
		pk, sk := partition.Split(opts.Prefix)
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                aws.String(s.config.Table),
			KeyConditionExpression:   aws.String("pk = :pk AND begins_with(sk, :sk)"),
			FilterExpression:         aws.String(TTLFilterExpr()),
			ProjectionExpression:     aws.String("pk, sk"),
			ExpressionAttributeNames: ttlFilterNames(),
			ExpressionAttributeValues: mergeExprValues(ttlFilterValues(now), map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: pk},
				":sk": &types.AttributeValueMemberS{Value: sk},
			}),
			ExclusiveStartKey: startKey,
			ConsistentRead:    aws.Bool(s.config.ConsistentRead),
			Limit:             aws.Int32(int32(limit)),
		})
		if err != nil {
			return kv.ListResult{}, fmt.Errorf("query %q: %w", opts.Prefix, err)
		}
		items, lastKey = out.Items, out.LastEvaluatedKey
	} else {
		filter := TTLFilterExpr()
		values := ttlFilterValues(now)
		if opts.Prefix != "" {
			filter = fmt.Sprintf("begins_with(pk, :prefix) AND (%s)", filter)
			values[":prefix"] = &types.AttributeValueMemberS{Value: opts.Prefix}
		}
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(s.config.Table),
			FilterExpression:          aws.String(filter),
			ProjectionExpression:      aws.String("pk, sk"),
			ExpressionAttributeNames:  ttlFilterNames(),
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
			Limit:                     aws.Int32(int32(limit)),
		})
		if err != nil {
			return kv.ListResult{}, fmt.Errorf("scan %q: %w", opts.Prefix, err)
		}
		items, lastKey = out.Items, out.LastEvaluatedKey
	}

	res := kv.ListResult{Keys: make([]kv.Key, 0, len(items))}
	for _, item := range items {
		res.Keys = append(res.Keys, kv.Key{Name: keyName(item)})
	}
	if len(lastKey) == 0 {
		res.Complete = true
	} else {
		res.Cursor = keyName(lastKey)
	}
	return res, nil
}

// CreateTable provisions the table with on-demand billing and enables TTL
// on the "ttl" attribute. An existing table is left as is.
func CreateTable(ctx context.Context, client *dynamodb.Client, table string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", table, err)
	}

	_, err = client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(ttlAttr),
			Enabled:       aws.Bool(true),
		},
	})
	// TTL already enabled reports a validation error; the table is usable either way.
	var apiErr interface{ ErrorCode() string }
	if err != nil && !(errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationException") {
		return fmt.Errorf("enable ttl on %s: %w", table, err)
	}
	return nil
}

// itemKey builds the primary key attributes for a store key.
func itemKey(key string) map[string]types.AttributeValue {
	pk, sk := partition.Split(key)
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}

// keyName rebuilds the store key from an item's key attributes.
func keyName(item map[string]types.AttributeValue) string {
	var pk, sk string
	if v, ok := item["pk"].(*types.AttributeValueMemberS); ok {
		pk = v.Value
	}
	if v, ok := item["sk"].(*types.AttributeValueMemberS); ok {
		sk = v.Value
	}
	return partition.Join(pk, sk)
}
