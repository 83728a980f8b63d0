package dynamodb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*dynamodb.QueryOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*dynamodb.GetItemOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*dynamodb.TransactWriteItemsOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func newStore(client Client) *RemoteStore {
	return NewRemoteStore(client, "em-test", 10*time.Millisecond, zap.NewNop())
}

func TestRemoteStore_Update_PutsDeletesAndMeta(t *testing.T) {
	client := new(mockClient)
	store := newStore(client)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var captured *dynamodb.TransactWriteItemsInput
	client.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*dynamodb.TransactWriteItemsInput) }).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	err := store.Update(context.Background(), "u1", ports.Patch{
		ports.PatchThoughtIndex + "a": entities.NewLexeme("a", now),
		ports.PatchThoughtIndex + "b": nil,
		ports.PatchContextIndex + "c": entities.NewContextEntry(valueobjects.NewContext("a"), now),
		ports.PatchLastClientID:       "client-1",
		ports.PatchLastUpdated:        now,
		ports.PatchSchemaVersion:      5,
	})
	require.NoError(t, err)
	client.AssertExpectations(t)

	require.NotNil(t, captured)
	require.Len(t, captured.TransactItems, 4)

	// records are sorted by path; context index sorts before thought index
	assert.NotNil(t, captured.TransactItems[0].Put)
	assert.NotNil(t, captured.TransactItems[1].Put)
	assert.NotNil(t, captured.TransactItems[2].Delete)

	var record recordItem
	require.NoError(t, attributevalue.UnmarshalMap(captured.TransactItems[1].Put.Item, &record))
	assert.Equal(t, "USER#u1", record.PK)
	assert.Equal(t, "thoughtIndex#a", record.SK)
	assert.Equal(t, EntityThought, record.EntityType)
	require.NotNil(t, record.Lexeme)
	assert.Equal(t, "a", record.Lexeme.Value)

	meta := captured.TransactItems[3].Update
	require.NotNil(t, meta)
	assert.Contains(t, *meta.UpdateExpression, "ADD")
	assert.Contains(t, *meta.UpdateExpression, "SET")
}

func TestRemoteStore_Update_WritesTombstones(t *testing.T) {
	client := new(mockClient)
	store := newStore(client)
	deletedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var captured *dynamodb.TransactWriteItemsInput
	client.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*dynamodb.TransactWriteItemsInput) }).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil).Once()

	err := store.Update(context.Background(), "u1", ports.Patch{
		ports.PatchThoughtIndex + "a": entities.NewLexemeTombstone(deletedAt),
	})
	require.NoError(t, err)
	require.NotNil(t, captured)
	require.Len(t, captured.TransactItems, 2)

	put := captured.TransactItems[0].Put
	require.NotNil(t, put, "a tombstone is stored, not deleted")

	snapshot := ports.NewRemoteSnapshot()
	require.NoError(t, store.decode(snapshot, put.Item))
	require.Contains(t, snapshot.ThoughtIndex, valueobjects.Key("a"))
	tombstone := snapshot.ThoughtIndex["a"]
	assert.True(t, tombstone.IsOrphaned())
	assert.True(t, deletedAt.Equal(tombstone.LastUpdated))
}

func TestRemoteStore_Update_ChunksLargePatches(t *testing.T) {
	client := new(mockClient)
	store := newStore(client)
	now := time.Now()

	patch := ports.Patch{}
	for i := 0; i < 150; i++ {
		value := fmt.Sprintf("v%03d", i)
		patch[ports.PatchThoughtIndex+value] = entities.NewLexeme(value, now)
	}

	var sizes []int
	client.On("TransactWriteItems", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sizes = append(sizes, len(args.Get(1).(*dynamodb.TransactWriteItemsInput).TransactItems))
		}).
		Return(&dynamodb.TransactWriteItemsOutput{}, nil)

	require.NoError(t, store.Update(context.Background(), "u1", patch))
	assert.Equal(t, []int{99, 52}, sizes)
}

func TestRemoteStore_Update_Errors(t *testing.T) {
	client := new(mockClient)
	store := newStore(client)

	err := store.Update(context.Background(), "u1", ports.Patch{"bogus": 1})
	assert.Error(t, err)

	client.On("TransactWriteItems", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("throttled")).Once()
	err = store.Update(context.Background(), "u1", ports.Patch{ports.PatchLastClientID: "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestRemoteStore_Get_DecodesItems(t *testing.T) {
	client := new(mockClient)
	store := newStore(client)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	thought, err := attributevalue.MarshalMap(recordItem{
		PK: "USER#u1", SK: "thoughtIndex#a", EntityType: EntityThought, Key: "a",
		Lexeme: entities.NewLexeme("a", now),
	})
	require.NoError(t, err)
	entry, err := attributevalue.MarshalMap(recordItem{
		PK: "USER#u1", SK: "contextIndex#a", EntityType: EntityContext, Key: "a",
		Entry: entities.NewContextEntry(valueobjects.NewContext("a"), now),
	})
	require.NoError(t, err)
	meta, err := attributevalue.MarshalMap(metaItem{
		PK: "USER#u1", SK: skMeta, EntityType: EntityMeta,
		LastClientID: "client-1", LastUpdated: "2026-01-02T03:04:05Z", SchemaVersion: 5, Revision: 3,
	})
	require.NoError(t, err)
	garbage := map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "USER#u1"}}

	client.On("Query", mock.Anything, mock.Anything).
		Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{thought, entry, meta, garbage}}, nil).Once()

	snapshot, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)

	require.Contains(t, snapshot.ThoughtIndex, valueobjects.Key("a"))
	assert.Equal(t, "a", snapshot.ThoughtIndex["a"].Value)
	require.Contains(t, snapshot.ContextIndex, valueobjects.Key("a"))
	assert.Equal(t, "client-1", snapshot.LastClientID)
	assert.Equal(t, 5, snapshot.SchemaVersion)
	assert.True(t, now.Equal(snapshot.LastUpdated))
}

func TestRemoteStore_Subscribe_FiresOnRevisionChange(t *testing.T) {
	client := new(mockClient)
	store := newStore(client)

	revision := func(n int64) *dynamodb.GetItemOutput {
		item, err := attributevalue.MarshalMap(metaItem{PK: "USER#u1", SK: skMeta, EntityType: EntityMeta, Revision: n})
		require.NoError(t, err)
		return &dynamodb.GetItemOutput{Item: item}
	}
	client.On("GetItem", mock.Anything, mock.Anything).Return(revision(1), nil).Twice()
	client.On("GetItem", mock.Anything, mock.Anything).Return(revision(2), nil)
	client.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	received := make(chan *ports.RemoteSnapshot, 8)
	sub, err := store.Subscribe(context.Background(), "u1", func(s *ports.RemoteSnapshot) { received <- s })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	select {
	case s := <-received:
		assert.NotNil(t, s)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered after revision change")
	}

	sub.Unsubscribe()
	// unchanged revision: exactly one delivery
	assert.Len(t, received, 0)
}

func TestChunkItems(t *testing.T) {
	assert.Len(t, chunkItems(nil, 99), 1)
	assert.Len(t, chunkItems(make([]types.TransactWriteItem, 99), 99), 1)
	assert.Len(t, chunkItems(make([]types.TransactWriteItem, 100), 99), 2)
}
