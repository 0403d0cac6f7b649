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

// ProfileRepo provides typed DynamoDB operations for the profiles table.
type ProfileRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewProfileRepo(client *dynamodb.Client, tableName string) *ProfileRepo {
	return &ProfileRepo{client: client, tableName: tableName}
}

// Put creates or replaces a profile.
func (r *ProfileRepo) Put(ctx context.Context, p *domain.Profile) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ProfileRepo) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("user_id", userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
	}
	var p domain.Profile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.queryOne(ctx, "email-index", "email", email)
}

func (r *ProfileRepo) GetByGoogleSub(ctx context.Context, sub string) (*domain.Profile, error) {
	return r.queryOne(ctx, "google_sub-index", "google_sub", sub)
}

// ListByOrganization returns every profile whose organization_id is orgID.
func (r *ProfileRepo) ListByOrganization(ctx context.Context, orgID string) ([]domain.Profile, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("organization_id-index"),
		KeyConditionExpression:    aws.String("organization_id = :o"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":o": strVal(orgID)},
	})
	var profiles []domain.Profile
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.Profile
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		profiles = append(profiles, batch...)
	}
	return profiles, nil
}

// CountActiveByOrganization counts active members of orgID.
func (r *ProfileRepo) CountActiveByOrganization(ctx context.Context, orgID string) (int, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("organization_id-index"),
		KeyConditionExpression: aws.String("organization_id = :o"),
		FilterExpression:       aws.String("is_active = :t"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":o": strVal(orgID),
			":t": &types.AttributeValueMemberBOOL{Value: true},
		},
		Select: types.SelectCount,
	})
	n := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		n += int(page.Count)
	}
	return n, nil
}

func (r *ProfileRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = nowString()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("user_id", userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(user_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("profile not found: %w", domain.ErrNotFound)
	}
	return err
}

// RemoveFromOrganization soft-removes a member: the row stays, detached and deactivated.
func (r *ProfileRepo) RemoveFromOrganization(ctx context.Context, userID string) error {
	return r.Update(ctx, userID, map[string]interface{}{
		fieldOrganizationID: nil,
		fieldRole:           string(domain.RoleMember),
		fieldIsActive:       false,
	})
}

// JoinOrganization attaches the profile to orgID with role and reactivates it.
func (r *ProfileRepo) JoinOrganization(ctx context.Context, userID, orgID string, role domain.Role) error {
	return r.Update(ctx, userID, map[string]interface{}{
		fieldOrganizationID: orgID,
		fieldRole:           string(role),
		fieldIsActive:       true,
	})
}

func (r *ProfileRepo) queryOne(ctx context.Context, index, attr, value string) (*domain.Profile, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": strVal(value)},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("profile not found: %w", domain.ErrNotFound)
	}
	var p domain.Profile
	if err := attributevalue.UnmarshalMap(out.Items[0], &p); err != nil {
		return nil, err
	}
	return &p, nil
}
