package lambdaboot

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/fbgraph/internal/archive"
	"github.com/fpang/fbgraph/internal/config"
	"github.com/fpang/fbgraph/internal/forward"
	"github.com/fpang/fbgraph/internal/store"
	"github.com/fpang/fbgraph/internal/webhook"
)

type fakeSSM struct {
	params map[string]string
	puts   []*ssm.PutParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	v, ok := f.params[aws.ToString(in.Name)]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(v)}}, nil
}

func (f *fakeSSM) PutParameter(_ context.Context, in *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	if f.params == nil {
		f.params = make(map[string]string)
	}
	f.params[aws.ToString(in.Name)] = aws.ToString(in.Value)
	f.puts = append(f.puts, in)
	return &ssm.PutParameterOutput{}, nil
}

type nopS3 struct{}

func (nopS3) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return &s3.PutObjectOutput{}, nil
}

func (nopS3) GetObject(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return nil, errors.New("not found")
}

type nopEventBridge struct{}

func (nopEventBridge) PutEvents(context.Context, *eventbridge.PutEventsInput, ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	return &eventbridge.PutEventsOutput{}, nil
}

func TestLoadSecrets_FromSSM(t *testing.T) {
	client := &fakeSSM{params: map[string]string{
		"/fbgraph/prod/app-secret":    "s3cr3t",
		"/fbgraph/prod/subscriptions": "foo=yabbadabbadoo,bar=barbar",
	}}
	cfg, err := config.Load(config.New())
	require.NoError(t, err)

	require.NoError(t, LoadSecrets(context.Background(), client, cfg))
	assert.Equal(t, "s3cr3t", cfg.AppSecret)
	assert.Equal(t, map[string]string{"foo": "yabbadabbadoo", "bar": "barbar"}, cfg.Subscriptions)
}

func TestLoadSecrets_EnvironmentWins(t *testing.T) {
	client := &fakeSSM{}
	cfg := &config.Config{
		AppSecret:         "from-env",
		Subscriptions:     map[string]string{"foo": "t"},
		SSMAppSecretParam: "/missing",
	}
	require.NoError(t, LoadSecrets(context.Background(), client, cfg))
	assert.Equal(t, "from-env", cfg.AppSecret)
}

func TestLoadSecrets_MissingParameter(t *testing.T) {
	cfg := &config.Config{SSMAppSecretParam: "/missing"}
	err := LoadSecrets(context.Background(), &fakeSSM{}, cfg)
	assert.ErrorContains(t, err, "/missing")
}

func TestPutParameter(t *testing.T) {
	client := &fakeSSM{}
	require.NoError(t, PutParameter(context.Background(), client, "/fbgraph/prod/tokens/42", "long-token"))
	require.Len(t, client.puts, 1)
	assert.Equal(t, ssmtypes.ParameterTypeSecureString, client.puts[0].Type)
	assert.True(t, aws.ToBool(client.puts[0].Overwrite))

	v, err := GetParameter(context.Background(), client, "/fbgraph/prod/tokens/42")
	require.NoError(t, err)
	assert.Equal(t, "long-token", v)
}

func TestHandlers(t *testing.T) {
	cfg := &config.Config{Table: "fb-realtime", ArchiveBucket: "fb-archive", ForwardEvents: true}
	clients := Clients{
		Dynamo:      dynamodb.New(dynamodb.Options{Region: "us-east-1"}),
		S3:          nopS3{},
		EventBridge: nopEventBridge{},
	}

	handlers, features, err := Handlers(cfg, clients)
	require.NoError(t, err)
	require.Len(t, handlers, 4)
	assert.IsType(t, webhook.LogHandler{}, handlers[0])
	assert.IsType(t, &store.UpdateLedger{}, handlers[1])
	assert.IsType(t, &archive.S3Archiver{}, handlers[2])
	assert.IsType(t, &forward.EventBridge{}, handlers[3])
	assert.Equal(t, map[string]bool{"ledger": true, "archive": true, "eventbridge": true}, features)
}

func TestHandlers_LogOnly(t *testing.T) {
	handlers, features, err := Handlers(&config.Config{}, Clients{})
	require.NoError(t, err)
	assert.Equal(t, []webhook.UpdateHandler{webhook.LogHandler{}}, handlers)
	assert.False(t, features["ledger"])
}
