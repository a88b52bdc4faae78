// Package archive keeps a compressed copy of every verified update in S3.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/fpang/fbgraph/internal/webhook"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Record is the archived document.
type Record struct {
	Subscription string         `json:"subscription"`
	Update       webhook.Update `json:"update"`
}

// S3Archiver is an UpdateHandler writing each update as zstd-compressed JSON.
type S3Archiver struct {
	client S3API
	bucket string
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

var _ webhook.UpdateHandler = (*S3Archiver)(nil)

// NewS3Archiver creates an archiver for bucket.
func NewS3Archiver(client S3API, bucket string) (*S3Archiver, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &S3Archiver{client: client, bucket: bucket, enc: enc, dec: dec}, nil
}

// Key returns the object key of an update:
// updates/<subscription>/<yyyy>/<mm>/<dd>/<deliveryId>.json.zst, dated by
// ReceivedAt in UTC.
func Key(subscription string, update webhook.Update) string {
	at := update.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	return fmt.Sprintf("updates/%s/%s/%s.json.zst", subscription, at.UTC().Format("2006/01/02"), update.DeliveryID)
}

// HandleUpdate implements webhook.UpdateHandler.
func (a *S3Archiver) HandleUpdate(ctx context.Context, subscription string, update webhook.Update) error {
	raw, err := json.Marshal(Record{Subscription: subscription, Update: update})
	if err != nil {
		return fmt.Errorf("marshal archive record: %w", err)
	}
	compressed := a.enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))

	key := Key(subscription, update)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          &a.bucket,
		Key:             &key,
		Body:            bytes.NewReader(compressed),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("zstd"),
		ContentLength:   aws.Int64(int64(len(compressed))),
	})
	if err != nil {
		return fmt.Errorf("upload %s to S3: %w", key, err)
	}

	log.Debug().
		Str("key", key).
		Int("rawSize", len(raw)).
		Int("compressedSize", len(compressed)).
		Msg("Update archived to S3")
	return nil
}

// Get reads an archived record back.
func (a *S3Archiver) Get(ctx context.Context, key string) (Record, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &a.bucket, Key: &key})
	if err != nil {
		return Record{}, fmt.Errorf("get %s from S3: %w", key, err)
	}
	defer out.Body.Close()

	compressed, err := io.ReadAll(out.Body)
	if err != nil {
		return Record{}, fmt.Errorf("read %s: %w", key, err)
	}
	raw, err := a.dec.DecodeAll(compressed, nil)
	if err != nil {
		return Record{}, fmt.Errorf("decompress %s: %w", key, err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, nil
}
