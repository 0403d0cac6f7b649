package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sealdrop-api/internal/domain"
)

// AccessCodeRepo stores one pending code per delivery and recipient. A new
// request overwrites the previous code; expires_at doubles as the table TTL.
type AccessCodeRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAccessCodeRepo(client *dynamodb.Client, tableName string) *AccessCodeRepo {
	return &AccessCodeRepo{client: client, tableName: tableName}
}

func (r *AccessCodeRepo) Put(ctx context.Context, c *domain.AccessCode) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal access code: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *AccessCodeRepo) Get(ctx context.Context, deliveryID, email string) (*domain.AccessCode, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            compositeKey("delivery_id", deliveryID, "email", email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("access code not found: %w", domain.ErrNotFound)
	}
	var c domain.AccessCode
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ConsumeAttempt burns one verification attempt and returns how many remain.
func (r *AccessCodeRepo) ConsumeAttempt(ctx context.Context, deliveryID, email string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      compositeKey("delivery_id", deliveryID, "email", email),
		UpdateExpression:         aws.String("ADD #a :dec"),
		ConditionExpression:      aws.String("attribute_exists(delivery_id) AND #a > :zero"),
		ExpressionAttributeNames: map[string]string{"#a": fieldAttemptsLeft},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":dec":  numVal(-1),
			":zero": numVal(0),
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if isConditionFailed(err) {
		return 0, fmt.Errorf("no attempts left: %w", domain.ErrForbidden)
	}
	if err != nil {
		return 0, err
	}
	var left struct {
		AttemptsLeft int `dynamodbav:"attempts_left"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &left); err != nil {
		return 0, err
	}
	return left.AttemptsLeft, nil
}

// Redeem deletes the code only if it still holds code, so a code can be
// redeemed once even when several correct submissions race.
func (r *AccessCodeRepo) Redeem(ctx context.Context, deliveryID, email, code string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      compositeKey("delivery_id", deliveryID, "email", email),
		ConditionExpression:      aws.String("#c = :c"),
		ExpressionAttributeNames: map[string]string{"#c": fieldCode},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": strVal(code),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("access code already used: %w", domain.ErrForbidden)
	}
	return err
}
