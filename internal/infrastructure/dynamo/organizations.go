package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sealdrop-api/internal/domain"
)

type OrganizationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewOrganizationRepo(client *dynamodb.Client, tableName string) *OrganizationRepo {
	return &OrganizationRepo{client: client, tableName: tableName}
}

func (r *OrganizationRepo) Put(ctx context.Context, o *domain.Organization) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal organization: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(organization_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("organization exists: %w", domain.ErrConflict)
	}
	return err
}

func (r *OrganizationRepo) Get(ctx context.Context, orgID string) (*domain.Organization, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("organization_id", orgID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("organization not found: %w", domain.ErrNotFound)
	}
	var o domain.Organization
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
