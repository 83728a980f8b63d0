package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	"github.com/anmolarora1/em/pkg/utils"
)

// Entity types and sort keys of the single-table layout
const (
	EntityThought = "THOUGHT"
	EntityContext = "CONTEXT"
	EntityMeta    = "META"

	skThoughtPrefix = "thoughtIndex#"
	skContextPrefix = "contextIndex#"
	skMeta          = "META"

	// maxTransactItems is the DynamoDB limit on items per TransactWriteItems call
	maxTransactItems = 100
)

// Client is the subset of the DynamoDB API used by the remote store
type Client interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// RemoteStore implements ports.RemoteStore on one DynamoDB table. Each user's document is
// the partition USER#<id>; every Lexeme and context entry is one item and a META item holds
// lastClientId, lastUpdated, schemaVersion and a revision counter.
type RemoteStore struct {
	client       Client
	tableName    string
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewRemoteStore creates a new RemoteStore
func NewRemoteStore(client Client, tableName string, pollInterval time.Duration, logger *zap.Logger) *RemoteStore {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &RemoteStore{
		client:       client,
		tableName:    tableName,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// recordItem is the DynamoDB item of one Lexeme or context entry
type recordItem struct {
	PK         string                 `dynamodbav:"PK"`
	SK         string                 `dynamodbav:"SK"`
	EntityType string                 `dynamodbav:"EntityType"`
	Key        string                 `dynamodbav:"Key"`
	Lexeme     *entities.Lexeme       `dynamodbav:"Lexeme,omitempty"`
	Entry      *entities.ContextEntry `dynamodbav:"Entry,omitempty"`
	UpdatedAt  string                 `dynamodbav:"UpdatedAt"`
}

// metaItem is the document root
type metaItem struct {
	PK            string `dynamodbav:"PK"`
	SK            string `dynamodbav:"SK"`
	EntityType    string `dynamodbav:"EntityType"`
	LastClientID  string `dynamodbav:"LastClientID"`
	LastUpdated   string `dynamodbav:"LastUpdated"`
	SchemaVersion int    `dynamodbav:"SchemaVersion"`
	Revision      int64  `dynamodbav:"Revision"`
}

func userPK(userID string) string {
	return fmt.Sprintf("USER#%s", userID)
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// Update writes patch with TransactWriteItems. Patches larger than one transaction are split;
// the META update is always in the last transaction so pollers only see a new revision once
// every record is written.
func (r *RemoteStore) Update(ctx context.Context, userID string, patch ports.Patch) error {
	pk := userPK(userID)
	now := time.Now()

	paths := make([]string, 0, len(patch))
	for path := range patch {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var (
		items []types.TransactWriteItem
		meta  = expression.Set(expression.Name("EntityType"), expression.Value(EntityMeta))
	)
	for _, path := range paths {
		value := patch[path]
		switch {
		case strings.HasPrefix(path, ports.PatchThoughtIndex), strings.HasPrefix(path, ports.PatchContextIndex):
			item, err := r.recordWrite(pk, path, value, now)
			if err != nil {
				return err
			}
			items = append(items, item)
		case path == ports.PatchLastClientID:
			meta = meta.Set(expression.Name("LastClientID"), expression.Value(value))
		case path == ports.PatchLastUpdated:
			ts, ok := value.(time.Time)
			if !ok {
				return fmt.Errorf("path %s: expected time, got %T", path, value)
			}
			meta = meta.Set(expression.Name("LastUpdated"), expression.Value(utils.FormatRFC3339(ts)))
		case path == ports.PatchSchemaVersion:
			meta = meta.Set(expression.Name("SchemaVersion"), expression.Value(value))
		default:
			return fmt.Errorf("unknown patch path %q", path)
		}
	}

	expr, err := expression.NewBuilder().
		WithUpdate(meta.Add(expression.Name("Revision"), expression.Value(1))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}
	metaUpdate := types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(r.tableName),
			Key:                       itemKey(pk, skMeta),
			UpdateExpression:          expr.Update(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		},
	}

	chunks := chunkItems(items, maxTransactItems-1)
	chunks[len(chunks)-1] = append(chunks[len(chunks)-1], metaUpdate)

	for i, chunk := range chunks {
		if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: chunk}); err != nil {
			r.logger.Error("Failed to write remote patch",
				zap.String("userID", userID),
				zap.Int("chunk", i+1),
				zap.Int("chunks", len(chunks)),
				zap.Error(err),
			)
			return fmt.Errorf("failed to write patch chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	r.logger.Debug("Wrote remote patch",
		zap.String("userID", userID),
		zap.Int("paths", len(patch)),
		zap.Int("transactions", len(chunks)),
	)
	return nil
}

func (r *RemoteStore) recordWrite(pk, path string, value interface{}, now time.Time) (types.TransactWriteItem, error) {
	var (
		sk         string
		entityType string
		key        string
	)
	if strings.HasPrefix(path, ports.PatchThoughtIndex) {
		key = strings.TrimPrefix(path, ports.PatchThoughtIndex)
		sk, entityType = skThoughtPrefix+key, EntityThought
	} else {
		key = strings.TrimPrefix(path, ports.PatchContextIndex)
		sk, entityType = skContextPrefix+key, EntityContext
	}

	item := recordItem{PK: pk, SK: sk, EntityType: entityType, Key: key, UpdatedAt: utils.FormatRFC3339(now)}
	switch v := value.(type) {
	case nil:
		return deleteItem(r.tableName, pk, sk), nil
	case *entities.Lexeme:
		if v == nil {
			return deleteItem(r.tableName, pk, sk), nil
		}
		item.Lexeme = v
	case *entities.ContextEntry:
		if v == nil {
			return deleteItem(r.tableName, pk, sk), nil
		}
		item.Entry = v
	default:
		return types.TransactWriteItem{}, fmt.Errorf("path %s: unsupported value %T", path, value)
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(r.tableName),
			Item:      av,
		},
	}, nil
}

func deleteItem(tableName, pk, sk string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(tableName),
			Key:       itemKey(pk, sk),
		},
	}
}

// chunkItems splits items into groups of at most size. It always returns at least one
// (possibly empty) group.
func chunkItems(items []types.TransactWriteItem, size int) [][]types.TransactWriteItem {
	chunks := [][]types.TransactWriteItem{}
	for len(items) > size {
		chunks = append(chunks, items[:size:size])
		items = items[size:]
	}
	return append(chunks, items)
}

// Get reads the whole document of a user with a paginated query
func (r *RemoteStore) Get(ctx context.Context, userID string) (*ports.RemoteSnapshot, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(userPK(userID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})

	snapshot := ports.NewRemoteSnapshot()
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query remote document: %w", err)
		}
		for _, item := range page.Items {
			if err := r.decode(snapshot, item); err != nil {
				r.logger.Warn("Skipping undecodable item", zap.String("userID", userID), zap.Error(err))
			}
		}
	}
	return snapshot, nil
}

func (r *RemoteStore) decode(snapshot *ports.RemoteSnapshot, item map[string]types.AttributeValue) error {
	entityType, ok := item["EntityType"].(*types.AttributeValueMemberS)
	if !ok {
		return fmt.Errorf("item has no entity type")
	}

	switch entityType.Value {
	case EntityThought, EntityContext:
		var record recordItem
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}
		if record.Lexeme != nil {
			snapshot.ThoughtIndex[valueobjects.Key(record.Key)] = record.Lexeme
		}
		if record.Entry != nil {
			snapshot.ContextIndex[valueobjects.Key(record.Key)] = record.Entry
		}
	case EntityMeta:
		var meta metaItem
		if err := attributevalue.UnmarshalMap(item, &meta); err != nil {
			return fmt.Errorf("failed to unmarshal meta: %w", err)
		}
		snapshot.LastClientID = meta.LastClientID
		snapshot.SchemaVersion = meta.SchemaVersion
		if meta.LastUpdated != "" {
			ts, err := utils.ParseRFC3339(meta.LastUpdated)
			if err != nil {
				return fmt.Errorf("invalid lastUpdated: %w", err)
			}
			snapshot.LastUpdated = ts
		}
	default:
		return fmt.Errorf("unknown entity type %q", entityType.Value)
	}
	return nil
}

// revision reads the revision counter of the META item
func (r *RemoteStore) revision(ctx context.Context, userID string) (int64, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            itemKey(userPK(userID), skMeta),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read meta: %w", err)
	}
	if out.Item == nil {
		return 0, nil
	}
	var meta metaItem
	if err := attributevalue.UnmarshalMap(out.Item, &meta); err != nil {
		return 0, fmt.Errorf("failed to unmarshal meta: %w", err)
	}
	return meta.Revision, nil
}

// Subscribe polls the META revision and delivers the full document whenever it changes.
// The document current at subscription time is not delivered.
func (r *RemoteStore) Subscribe(ctx context.Context, userID string, onSnapshot func(*ports.RemoteSnapshot)) (ports.Subscription, error) {
	last, err := r.revision(ctx, userID)
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub := &pollSubscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				current, err := r.revision(pollCtx, userID)
				if err != nil {
					r.logger.Warn("Failed to poll remote document", zap.String("userID", userID), zap.Error(err))
					continue
				}
				if current == last {
					continue
				}
				snapshot, err := r.Get(pollCtx, userID)
				if err != nil {
					r.logger.Warn("Failed to read remote document", zap.String("userID", userID), zap.Error(err))
					continue
				}
				last = current
				onSnapshot(snapshot)
			}
		}
	}()
	return sub, nil
}

type pollSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// Unsubscribe stops polling and waits for an in-flight delivery to return
func (s *pollSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
