package dynamo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sealdrop-api/internal/config"
	"github.com/sealdrop-api/internal/domain"
)

// DeliveryRepo owns the deliveries and delivery_files tables. Creation also
// charges subscription usage in the same transaction.
type DeliveryRepo struct {
	client        *dynamodb.Client
	deliveries    string
	files         string
	subscriptions string
}

func NewDeliveryRepo(client *dynamodb.Client, tables config.DynamoTables) *DeliveryRepo {
	return &DeliveryRepo{
		client:        client,
		deliveries:    tables.Deliveries,
		files:         tables.DeliveryFiles,
		subscriptions: tables.Subscriptions,
	}
}

// UsageCharge debits one delivery and Bytes of storage from an organization's
// subscription. Zero limits are unlimited.
type UsageCharge struct {
	OrganizationID  string
	Bytes           int64
	DeliveriesLimit int
	StorageLimit    int64
}

// Create writes the delivery, its files and the optional usage charge atomically.
func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery, files []domain.DeliveryFile, charge *UsageCharge) error {
	if len(files)+2 > maxTransactItems {
		return fmt.Errorf("too many files in one delivery: %w", domain.ErrBadRequest)
	}
	item, err := attributevalue.MarshalMap(d)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(r.deliveries),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(delivery_id)"),
		},
	}}
	for i := range files {
		fi, err := attributevalue.MarshalMap(&files[i])
		if err != nil {
			return fmt.Errorf("marshal delivery file: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{TableName: aws.String(r.files), Item: fi},
		})
	}
	if charge != nil {
		upd, err := r.chargeUpdate(charge)
		if err != nil {
			return err
		}
		items = append(items, types.TransactWriteItem{Update: upd})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if idx, ok := cancelledAt(err); ok {
		if charge != nil && containsIndex(idx, len(items)-1) {
			return fmt.Errorf("plan limit reached: %w", domain.ErrQuotaExceeded)
		}
		if containsIndex(idx, 0) {
			return fmt.Errorf("delivery exists: %w", domain.ErrConflict)
		}
	}
	return err
}

func (r *DeliveryRepo) chargeUpdate(c *UsageCharge) (*types.Update, error) {
	cond := "attribute_exists(organization_id)"
	values := map[string]types.AttributeValue{
		":one":   numVal(1),
		":bytes": numVal(c.Bytes),
	}
	if c.DeliveriesLimit > 0 {
		cond += " AND " + fieldDeliveriesUsed + " < :dlimit"
		values[":dlimit"] = numVal(int64(c.DeliveriesLimit))
	}
	if c.StorageLimit > 0 {
		headroom := c.StorageLimit - c.Bytes
		if headroom < 0 {
			return nil, fmt.Errorf("delivery exceeds storage limit: %w", domain.ErrQuotaExceeded)
		}
		cond += " AND " + fieldStorageUsed + " <= :smax"
		values[":smax"] = numVal(headroom)
	}
	return &types.Update{
		TableName:                 aws.String(r.subscriptions),
		Key:                       strKey("organization_id", c.OrganizationID),
		UpdateExpression:          aws.String("ADD " + fieldDeliveriesUsed + " :one, " + fieldStorageUsed + " :bytes"),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeValues: values,
	}, nil
}

func (r *DeliveryRepo) Get(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.deliveries),
		Key:            strKey("delivery_id", deliveryID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("delivery not found: %w", domain.ErrNotFound)
	}
	var d domain.Delivery
	if err := attributevalue.UnmarshalMap(out.Item, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByOrganization returns the organization's deliveries, newest first.
func (r *DeliveryRepo) ListByOrganization(ctx context.Context, orgID string) ([]domain.Delivery, error) {
	return r.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.deliveries),
		IndexName:                 aws.String("organization_id-created_at-index"),
		KeyConditionExpression:    aws.String("organization_id = :o"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":o": strVal(orgID)},
		ScanIndexForward:          aws.Bool(false),
	})
}

// ListByStatus returns every delivery currently in status.
func (r *DeliveryRepo) ListByStatus(ctx context.Context, status string) ([]domain.Delivery, error) {
	return r.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.deliveries),
		IndexName:                 aws.String("status-index"),
		KeyConditionExpression:    aws.String("#s = :s"),
		ExpressionAttributeNames:  map[string]string{"#s": fieldStatus},
		ExpressionAttributeValues: map[string]types.AttributeValue{":s": strVal(status)},
	})
}

func (r *DeliveryRepo) query(ctx context.Context, in *dynamodb.QueryInput) ([]domain.Delivery, error) {
	p := dynamodb.NewQueryPaginator(r.client, in)
	var out []domain.Delivery
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.Delivery
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// UpdateStatus moves an active delivery to status. Terminal deliveries are never reopened.
func (r *DeliveryRepo) UpdateStatus(ctx context.Context, deliveryID, status string) (*domain.Delivery, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.deliveries),
		Key:                      strKey("delivery_id", deliveryID),
		UpdateExpression:         aws.String("SET #s = :new, #u = :now"),
		ConditionExpression:      aws.String("attribute_exists(delivery_id) AND #s = :active"),
		ExpressionAttributeNames: map[string]string{"#s": fieldStatus, "#u": fieldUpdatedAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":    strVal(status),
			":now":    strVal(nowString()),
			":active": strVal(domain.DeliveryActive),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("delivery is no longer active: %w", domain.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	var d domain.Delivery
	if err := attributevalue.UnmarshalMap(out.Attributes, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// IncrementViews counts one view, refusing once current_views has reached max_views.
func (r *DeliveryRepo) IncrementViews(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	return r.incrementCounter(ctx, deliveryID, fieldCurrentViews, fieldMaxViews)
}

// IncrementDownloads counts one download, refusing once current_downloads has reached max_downloads.
func (r *DeliveryRepo) IncrementDownloads(ctx context.Context, deliveryID string) (*domain.Delivery, error) {
	return r.incrementCounter(ctx, deliveryID, fieldCurrentDownloads, fieldMaxDownloads)
}

func (r *DeliveryRepo) incrementCounter(ctx context.Context, deliveryID, counter, limit string) (*domain.Delivery, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.deliveries),
		Key:                 strKey("delivery_id", deliveryID),
		UpdateExpression:    aws.String("SET #c = #c + :one"),
		ConditionExpression: aws.String("attribute_exists(delivery_id) AND #s = :active AND (#m = :zero OR #c < #m)"),
		ExpressionAttributeNames: map[string]string{
			"#c": counter,
			"#m": limit,
			"#s": fieldStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":    numVal(1),
			":zero":   numVal(0),
			":active": strVal(domain.DeliveryActive),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("%s limit reached: %w", counter, domain.ErrQuotaExceeded)
	}
	if err != nil {
		return nil, err
	}
	var d domain.Delivery
	if err := attributevalue.UnmarshalMap(out.Attributes, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DeliveryRepo) ListFiles(ctx context.Context, deliveryID string) ([]domain.DeliveryFile, error) {
	p := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.files),
		KeyConditionExpression:    aws.String("delivery_id = :d"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":d": strVal(deliveryID)},
	})
	var files []domain.DeliveryFile
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var batch []domain.DeliveryFile
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		files = append(files, batch...)
	}
	return files, nil
}

func (r *DeliveryRepo) GetFile(ctx context.Context, deliveryID, fileID string) (*domain.DeliveryFile, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.files),
		Key:       compositeKey("delivery_id", deliveryID, "file_id", fileID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("file not found: %w", domain.ErrNotFound)
	}
	var f domain.DeliveryFile
	if err := attributevalue.UnmarshalMap(out.Item, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Delete removes the delivery row and every file row that belongs to it.
func (r *DeliveryRepo) Delete(ctx context.Context, deliveryID string) error {
	files, err := r.ListFiles(ctx, deliveryID)
	if err != nil {
		return err
	}
	for start := 0; start < len(files); start += maxBatchWrite {
		end := min(start+maxBatchWrite, len(files))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, f := range files[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: compositeKey("delivery_id", deliveryID, "file_id", f.FileID)},
			})
		}
		if err := r.batchWrite(ctx, reqs); err != nil {
			return fmt.Errorf("delete file rows: %w", err)
		}
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.deliveries),
		Key:       strKey("delivery_id", deliveryID),
	})
	return err
}

// batchWrite resubmits unprocessed requests a bounded number of times.
func (r *DeliveryRepo) batchWrite(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.files: reqs}
	for attempt := 0; attempt < 3 && len(pending) > 0; attempt++ {
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		pending = out.UnprocessedItems
	}
	if n := len(pending[r.files]); n > 0 {
		slog.Warn("batch delete left unprocessed items", "table", r.files, "count", n)
		return fmt.Errorf("%d file rows left unprocessed", n)
	}
	return nil
}
