package dynamo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sealdrop-api/internal/config"
)

// tableDef describes one table: its key, its string-typed index keys and an
// optional TTL attribute.
type tableDef struct {
	name    string
	pk, sk  string
	indexes []types.GlobalSecondaryIndex
	ttl     string
}

func tableDefs(t config.DynamoTables) []tableDef {
	return []tableDef{
		{name: t.Profiles, pk: "user_id", indexes: []types.GlobalSecondaryIndex{
			gsi("email-index", "email", ""),
			gsi("google_sub-index", "google_sub", ""),
			gsi("organization_id-index", "organization_id", ""),
		}},
		{name: t.Organizations, pk: "organization_id"},
		{name: t.Sessions, pk: "session_id", indexes: []types.GlobalSecondaryIndex{
			gsi("user_id-index", "user_id", ""),
		}},
		{name: t.Deliveries, pk: "delivery_id", indexes: []types.GlobalSecondaryIndex{
			gsi("organization_id-created_at-index", "organization_id", "created_at"),
			gsi("status-index", "status", ""),
		}},
		{name: t.DeliveryFiles, pk: "delivery_id", sk: "file_id"},
		{name: t.AccessCodes, pk: "delivery_id", sk: "email", ttl: "expires_at"},
		{name: t.Invitations, pk: "invitation_id", indexes: []types.GlobalSecondaryIndex{
			gsi("token_hash-index", "token_hash", ""),
			gsi("organization_id-index", "organization_id", ""),
		}},
		{name: t.Subscriptions, pk: "organization_id"},
		{name: t.EarlyAdopter, pk: "slot_id"},
		{name: t.Waitlist, pk: "email"},
	}
}

// Bootstrap creates every table and index that does not exist yet.
// Existing tables are left untouched.
func Bootstrap(ctx context.Context, client *dynamodb.Client, tables config.DynamoTables) {
	for _, def := range tableDefs(tables) {
		createTable(ctx, client, def.input())
		if def.ttl != "" {
			enableTTL(ctx, client, def.name, def.ttl)
		}
	}
}

func (d tableDef) input() *dynamodb.CreateTableInput {
	attrs := map[string]struct{}{d.pk: {}}
	keys := []types.KeySchemaElement{{AttributeName: aws.String(d.pk), KeyType: types.KeyTypeHash}}
	if d.sk != "" {
		attrs[d.sk] = struct{}{}
		keys = append(keys, types.KeySchemaElement{AttributeName: aws.String(d.sk), KeyType: types.KeyTypeRange})
	}
	for _, idx := range d.indexes {
		for _, k := range idx.KeySchema {
			attrs[*k.AttributeName] = struct{}{}
		}
	}
	defs := make([]types.AttributeDefinition, 0, len(attrs))
	for name := range attrs {
		defs = append(defs, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: types.ScalarAttributeTypeS,
		})
	}
	in := &dynamodb.CreateTableInput{
		TableName:            aws.String(d.name),
		BillingMode:          types.BillingModePayPerRequest,
		AttributeDefinitions: defs,
		KeySchema:            keys,
	}
	if len(d.indexes) > 0 {
		in.GlobalSecondaryIndexes = d.indexes
	}
	return in
}

// gsi builds an index descriptor projecting all attributes. sortKey may be empty.
func gsi(indexName, hashKey, sortKey string) types.GlobalSecondaryIndex {
	ks := []types.KeySchemaElement{
		{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
	}
	if sortKey != "" {
		ks = append(ks, types.KeySchemaElement{
			AttributeName: aws.String(sortKey), KeyType: types.KeyTypeRange,
		})
	}
	return types.GlobalSecondaryIndex{
		IndexName:  aws.String(indexName),
		KeySchema:  ks,
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}

func createTable(ctx context.Context, client *dynamodb.Client, input *dynamodb.CreateTableInput) {
	_, err := client.CreateTable(ctx, input)
	if err == nil {
		slog.Info("created table", "table", *input.TableName)
		return
	}
	var riue *types.ResourceInUseException
	if !errors.As(err, &riue) {
		slog.Warn("could not create table", "table", *input.TableName, "err", err)
	}
}

func enableTTL(ctx context.Context, client *dynamodb.Client, tableName, ttlAttr string) {
	_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			Enabled:       aws.Bool(true),
			AttributeName: aws.String(ttlAttr),
		},
	})
	if err != nil {
		slog.Warn("could not enable TTL", "table", tableName, "err", err)
	}
}
