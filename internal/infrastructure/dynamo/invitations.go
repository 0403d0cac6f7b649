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

type InvitationRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewInvitationRepo(client *dynamodb.Client, tableName string) *InvitationRepo {
	return &InvitationRepo{client: client, tableName: tableName}
}

func (r *InvitationRepo) Put(ctx context.Context, inv *domain.OrganizationInvitation) error {
	item, err := attributevalue.MarshalMap(inv)
	if err != nil {
		return fmt.Errorf("marshal invitation: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(invitation_id)"),
	})
	if isConditionFailed(err) {
		return fmt.Errorf("invitation exists: %w", domain.ErrConflict)
	}
	return err
}

func (r *InvitationRepo) Get(ctx context.Context, invitationID string) (*domain.OrganizationInvitation, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("invitation_id", invitationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("invitation not found: %w", domain.ErrNotFound)
	}
	var inv domain.OrganizationInvitation
	if err := attributevalue.UnmarshalMap(out.Item, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetByTokenHash looks an invitation up by the SHA-256 of its token.
func (r *InvitationRepo) GetByTokenHash(ctx context.Context, hash string) (*domain.OrganizationInvitation, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("token_hash-index"),
		KeyConditionExpression:    aws.String("#t = :t"),
		ExpressionAttributeNames:  map[string]string{"#t": "token_hash"},
		ExpressionAttributeValues: map[string]types.AttributeValue{ ":t": strVal(hash)},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("invitation not found: %w", domain.ErrNotFound)
	}
	var inv domain.OrganizationInvitation
	if err := attributevalue.UnmarshalMap(out.Items[0], &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListPending returns the organization's invitations that have not been accepted.
func (r *InvitationRepo) ListPending(ctx context.Context, orgID string) ([]domain.OrganizationInvitation, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                aws.String(r.tableName),
		IndexName:                aws.String("organization_id-index"),
		KeyConditionExpression:   aws.String("organization_id = :o"),
		FilterExpression:         aws.String("#a = :f"),
		ExpressionAttributeNames: map[string]string{"#a": fieldAccepted},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":o": strVal(orgID),
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	var out []domain.OrganizationInvitation
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.OrganizationInvitation
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// MarkAccepted flips accepted once; a second acceptance is a conflict.
func (r *InvitationRepo) MarkAccepted(ctx context.Context, invitationID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("invitation_id", invitationID),
		UpdateExpression:         aws.String("SET #a = :t"),
		ConditionExpression:      aws.String("attribute_exists(invitation_id) AND #a = :f"),
		ExpressionAttributeNames: map[string]string{"#a": fieldAccepted},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberBOOL{Value: true},
			":f": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("invitation already used: %w", domain.ErrConflict)
	}
	return err
}

func (r *InvitationRepo) Delete(ctx context.Context, invitationID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("invitation_id", invitationID),
	})
	return err
}
