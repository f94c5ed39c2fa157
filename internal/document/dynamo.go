package document

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jun/gophdocs/backend/internal/model"
)

// ItemGetter is the subset of *dynamodb.Client used for lookups.
type ItemGetter interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore reads documents from a DynamoDB table keyed by doc_id.
type DynamoStore struct {
	client    ItemGetter
	tableName string
}

// NewDynamoStore creates a new DynamoStore.
func NewDynamoStore(client ItemGetter, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

func (s *DynamoStore) GetDocument(ctx context.Context, docID string) (*model.Document, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"doc_id": &types.AttributeValueMemberS{Value: docID},
		},
		ProjectionExpression: aws.String("doc_id, title, slug, last_editor_id"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var doc model.Document
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &doc, nil
}
