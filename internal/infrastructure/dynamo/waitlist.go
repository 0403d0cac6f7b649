package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sealdrop-api/internal/domain"
)

type WaitlistRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewWaitlistRepo(client *dynamodb.Client, tableName string) *WaitlistRepo {
	return &WaitlistRepo{client: client, tableName: tableName}
}

// PutIfAbsent adds the email once; the table is keyed by normalized email.
func (r *WaitlistRepo) PutIfAbsent(ctx context.Context, e *domain.WaitlistEntry) error {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("marshal waitlist entry: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(email)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("already on the waitlist: %w", domain.ErrConflict)
	}
	return err
}
