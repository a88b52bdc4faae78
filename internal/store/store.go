// Package store persists realtime updates and deauthorizations in DynamoDB.
//
// Everything lives in one table keyed by PK/SK:
//
//	OBJECT#<object>#<id>   UPDATE#<time>#<deliveryId>#<index>   one item per update entry
//	USER#<userId>          DEAUTH                               one item per deauthorized user
//
// A TTL attribute (expiresAt) lets DynamoDB expire old records.
package store

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// UpdateTTL is how long ledger entries are kept.
const UpdateTTL = 30 * 24 * time.Hour

// DeauthorizationTTL is how long a deauthorization is remembered.
const DeauthorizationTTL = 90 * 24 * time.Hour

// DynamoAPI is the subset of the DynamoDB client this package uses.
// *dynamodb.Client satisfies it.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ DynamoAPI = (*dynamodb.Client)(nil)

// UpdateRecord is one stored update entry. Key attributes are derived from
// the other fields and excluded from the marshaled item.
type UpdateRecord struct {
	Object        string    `dynamodbav:"object"`
	SubjectID     int64     `dynamodbav:"subjectId"`
	Time          int64     `dynamodbav:"time"`
	ChangedFields []string  `dynamodbav:"changedFields"`
	Subscription  string    `dynamodbav:"subscription"`
	DeliveryID    string    `dynamodbav:"deliveryId"`
	ReceivedAt    time.Time `dynamodbav:"receivedAt"`
}

// Deauthorization records that a user removed the app.
type Deauthorization struct {
	UserID     string    `dynamodbav:"-"`
	IssuedAt   int64     `dynamodbav:"issuedAt"`
	RecordedAt time.Time `dynamodbav:"recordedAt"`
}
