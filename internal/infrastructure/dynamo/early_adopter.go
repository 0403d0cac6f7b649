package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sealdrop-api/internal/domain"
)

const earlyAdopterCounterID = "early_adopter"

func claimMarkerID(orgID string) string { return "claim#" + orgID }

// EarlyAdopterRepo keeps a single slot counter row plus one marker row per
// claiming organization, both keyed by slot_id.
type EarlyAdopterRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewEarlyAdopterRepo(client *dynamodb.Client, tableName string) *EarlyAdopterRepo {
	return &EarlyAdopterRepo{client: client, tableName: tableName}
}

type slotCounter struct {
	Claimed int `dynamodbav:"claimed"`
}

type claimMarker struct {
	SlotID         string `dynamodbav:"slot_id"`
	OrganizationID string `dynamodbav:"organization_id"`
	ClaimedBy      string `dynamodbav:"claimed_by"`
	ClaimedAt      string `dynamodbav:"claimed_at"`
}

// Claim takes one of total slots for orgID. The counter bump and the marker
// write commit together, so concurrent claims can never exceed total.
func (r *EarlyAdopterRepo) Claim(ctx context.Context, orgID, userID string, total int) error {
	marker, err := attributevalue.MarshalMap(claimMarker{
		SlotID:         claimMarkerID(orgID),
		OrganizationID: orgID,
		ClaimedBy:      userID,
		ClaimedAt:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal claim marker: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: &types.Update{
				TableName:           aws.String(r.tableName),
				Key:                 strKey("slot_id", earlyAdopterCounterID),
				UpdateExpression:    aws.String("SET claimed = if_not_exists(claimed, :zero) + :one, total_slots = :total"),
				ConditionExpression: aws.String("attribute_not_exists(claimed) OR claimed < :total"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":zero":  numVal(0),
					":one":   numVal(1),
					":total": numVal(int64(total)),
				},
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                marker,
				ConditionExpression: aws.String("attribute_not_exists(slot_id)"),
			}},
		},
	})
	if idx, ok := cancelledAt(err); ok {
		switch {
		case containsIndex(idx, 1):
			return domain.ErrAlreadyClaimed
		case containsIndex(idx, 0):
			return domain.ErrSlotsExhausted
		}
	}
	return err
}

// Status reports slot usage and whether orgID already holds a slot.
func (r *EarlyAdopterRepo) Status(ctx context.Context, orgID string, total int) (*domain.EarlyAdopterStatus, error) {
	out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			r.tableName: {
				Keys: []map[string]types.AttributeValue{
					strKey("slot_id", earlyAdopterCounterID),
					strKey("slot_id", claimMarkerID(orgID)),
				},
				ConsistentRead: aws.Bool(true),
			},
		},
	})
	if err != nil {
		return nil, err
	}
	st := &domain.EarlyAdopterStatus{TotalSlots: total}
	for _, item := range out.Responses[r.tableName] {
		var id struct {
			SlotID string `dynamodbav:"slot_id"`
		}
		if err := attributevalue.UnmarshalMap(item, &id); err != nil {
			return nil, err
		}
		if id.SlotID != earlyAdopterCounterID {
			st.AlreadyClaimed = true
			continue
		}
		var c slotCounter
		if err := attributevalue.UnmarshalMap(item, &c); err != nil {
			return nil, err
		}
		st.ClaimedSlots = c.Claimed
	}
	st.RemainingSlots = max(total-st.ClaimedSlots, 0)
	return st, nil
}
