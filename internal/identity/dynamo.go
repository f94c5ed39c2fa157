package identity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jun/gophdocs/backend/internal/model"
)

// ItemGetter is the subset of *dynamodb.Client used by DynamoDirectory.
type ItemGetter interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoDirectory reads display names from the Users table.
type DynamoDirectory struct {
	client    ItemGetter
	tableName string
}

// NewDynamoDirectory creates a new DynamoDirectory.
func NewDynamoDirectory(client ItemGetter, tableName string) *DynamoDirectory {
	return &DynamoDirectory{client: client, tableName: tableName}
}

func (d *DynamoDirectory) DisplayName(ctx context.Context, actorID string) (string, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: actorID},
		},
		ProjectionExpression: aws.String("user_id, display_name"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if out.Item == nil {
		return "", ErrUnknownActor
	}

	var profile model.UserProfile
	if err := attributevalue.UnmarshalMap(out.Item, &profile); err != nil {
		return "", fmt.Errorf("failed to unmarshal user: %w", err)
	}
	if profile.DisplayName == "" {
		return "", ErrUnknownActor
	}
	return profile.DisplayName, nil
}
