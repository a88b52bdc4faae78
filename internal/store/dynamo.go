package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// maxBatchWrite is the DynamoDB BatchWriteItem limit per call.
	maxBatchWrite = 25
	// maxUnprocessedRetries bounds resubmission of UnprocessedItems.
	maxUnprocessedRetries = 3
)

// table holds the key/TTL helpers shared by the stores.
type table struct {
	client DynamoAPI
	name   string
	now    func() time.Time
}

func newTable(client DynamoAPI, name string) table {
	return table{client: client, name: name, now: time.Now}
}

func (t table) expiresAt(ttl time.Duration) string {
	return strconv.FormatInt(t.now().Add(ttl).Unix(), 10)
}

// item marshals data and adds PK, SK and expiresAt, overwriting any
// conflicting attributes of data.
func (t table) item(pk, sk string, ttl time.Duration, data any) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: t.expiresAt(ttl)}
	return item, nil
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func (t table) putItem(ctx context.Context, pk, sk string, ttl time.Duration, data any) error {
	item, err := t.item(pk, sk, ttl, data)
	if err != nil {
		return err
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &t.name,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem reads one item into out. It reports false when the item does not
// exist, leaving out untouched.
func (t table) getItem(ctx context.Context, pk, sk string, out any) (bool, error) {
	result, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &t.name,
		Key:       key(pk, sk),
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

func (t table) deleteItem(ctx context.Context, pk, sk string) error {
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &t.name,
		Key:       key(pk, sk),
	})
	if err != nil {
		return fmt.Errorf("DeleteItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// queryNewest returns up to limit items of pk whose SK begins with skPrefix,
// newest SK first. A limit of zero or less returns every item.
func (t table) queryNewest(ctx context.Context, pk, skPrefix string, limit int) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              &t.name,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skPrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":       &types.AttributeValueMemberS{Value: pk},
			":skPrefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	var items []map[string]types.AttributeValue
	for {
		result, err := t.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s SK prefix=%s: %w", pk, skPrefix, err)
		}
		items = append(items, result.Items...)

		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
		if result.LastEvaluatedKey == nil {
			return items, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// batchPut writes items in chunks of 25, resubmitting UnprocessedItems a
// bounded number of times.
func (t table) batchPut(ctx context.Context, items []map[string]types.AttributeValue) error {
	for i := 0; i < len(items); i += maxBatchWrite {
		end := min(i+maxBatchWrite, len(items))

		requests := make([]types.WriteRequest, 0, end-i)
		for _, item := range items[i:end] {
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}

		pending := map[string][]types.WriteRequest{t.name: requests}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt > maxUnprocessedRetries {
				return fmt.Errorf("BatchWriteItem: %d items still unprocessed", len(pending[t.name]))
			}
			result, err := t.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				return fmt.Errorf("BatchWriteItem put (%d items): %w", len(pending[t.name]), err)
			}
			pending = result.UnprocessedItems
		}
	}
	return nil
}
