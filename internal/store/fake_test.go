package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory table keyed by PK/SK. It understands the
// key condition used by queryNewest and nothing more.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	// unprocessedOnce makes the first BatchWriteItem call return its last
	// request as unprocessed.
	unprocessedOnce bool
	batchCalls      int
	err             error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func attrS(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func itemKey(item map[string]types.AttributeValue) string {
	return attrS(item, "PK") + "|" + attrS(item, "SK")
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.items[itemKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, itemKey(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	pk := attrS(in.ExpressionAttributeValues, ":pk")
	prefix := attrS(in.ExpressionAttributeValues, ":skPrefix")

	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		if attrS(item, "PK") == pk && strings.HasPrefix(attrS(item, "SK"), prefix) {
			matched = append(matched, item)
		}
	}
	forward := in.ScanIndexForward == nil || *in.ScanIndexForward
	sort.Slice(matched, func(i, j int) bool {
		if forward {
			return attrS(matched[i], "SK") < attrS(matched[j], "SK")
		}
		return attrS(matched[i], "SK") > attrS(matched[j], "SK")
	})
	if in.Limit != nil && int(*in.Limit) < len(matched) {
		matched = matched[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: matched}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.err != nil {
		return nil, f.err
	}

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, requests := range in.RequestItems {
		if len(requests) > 25 {
			return nil, errors.New("too many items in batch")
		}
		seen := make(map[string]bool, len(requests))
		for _, r := range requests {
			k := itemKey(r.PutRequest.Item)
			if seen[k] {
				return nil, errors.New("ValidationException: Provided list of item keys contains duplicates")
			}
			seen[k] = true
		}
		if f.unprocessedOnce && len(requests) > 0 {
			f.unprocessedOnce = false
			out.UnprocessedItems[table] = requests[len(requests)-1:]
			requests = requests[:len(requests)-1]
		}
		for _, r := range requests {
			f.items[itemKey(r.PutRequest.Item)] = r.PutRequest.Item
		}
	}
	return out, nil
}
