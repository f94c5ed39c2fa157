package editlock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jun/gophdocs/backend/internal/model"
)

// DynamoAPI is the subset of *dynamodb.Client methods used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps edit locks in a DynamoDB table keyed by doc_id.
// The table's TTL attribute should be set to expires_at so stale rows are
// removed by DynamoDB itself.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
}

// NewDynamoStore creates a new DynamoStore.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

func (s *DynamoStore) key(docID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"doc_id": &types.AttributeValueMemberS{Value: docID},
	}
}

// Get retrieves the stored lock for a document.
func (s *DynamoStore) Get(ctx context.Context, docID string) (*model.DocumentLock, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(docID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get edit lock: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var lock model.DocumentLock
	if err := attributevalue.UnmarshalMap(out.Item, &lock); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edit lock: %w", err)
	}
	return &lock, nil
}

// Claim writes the lock with a conditional PutItem.
// Condition: no item, no or empty holder, same holder, or acquired_at <= :cutoff.
func (s *DynamoStore) Claim(ctx context.Context, docID, actorID string, now time.Time, window time.Duration) (*model.DocumentLock, bool, error) {
	lock := model.DocumentLock{
		DocID:      docID,
		HolderID:   actorID,
		AcquiredAt: now.UnixMilli(),
		ExpiresAt:  now.Add(window).Unix(),
	}

	item, err := attributevalue.MarshalMap(lock)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal edit lock: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
		ConditionExpression: aws.String(
			"attribute_not_exists(doc_id) OR attribute_not_exists(holder_id) OR holder_id = :empty OR holder_id = :actor OR acquired_at <= :cutoff",
		),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty":  &types.AttributeValueMemberS{Value: ""},
			":actor":  &types.AttributeValueMemberS{Value: actorID},
			":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(-window).UnixMilli(), 10)},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return &lock, true, nil
	}

	var condFailed *types.ConditionalCheckFailedException
	if !errors.As(err, &condFailed) {
		return nil, false, fmt.Errorf("failed to claim edit lock: %w", err)
	}

	if len(condFailed.Item) == 0 {
		current, err := s.Get(ctx, docID)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}

	var current model.DocumentLock
	if err := attributevalue.UnmarshalMap(condFailed.Item, &current); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal edit lock: %w", err)
	}
	return &current, false, nil
}

// Release removes the lock if actorID holds it.
func (s *DynamoStore) Release(ctx context.Context, docID, actorID string) (bool, error) {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 s.key(docID),
		ConditionExpression: aws.String("holder_id = :actor"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":actor": &types.AttributeValueMemberS{Value: actorID},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return false, nil
		}
		return false, fmt.Errorf("failed to release edit lock: %w", err)
	}
	return true, nil
}

// Clear removes the lock regardless of holder.
func (s *DynamoStore) Clear(ctx context.Context, docID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(docID),
	})
	if err != nil {
		return fmt.Errorf("failed to clear edit lock: %w", err)
	}
	return nil
}
