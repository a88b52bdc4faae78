// Package lambdaboot holds the cold-start wiring shared by the lambdas:
// AWS config, secrets from SSM, and the update handler chain.
package lambdaboot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/fbgraph/internal/archive"
	"github.com/fpang/fbgraph/internal/config"
	"github.com/fpang/fbgraph/internal/forward"
	"github.com/fpang/fbgraph/internal/logging"
	"github.com/fpang/fbgraph/internal/store"
	"github.com/fpang/fbgraph/internal/webhook"
)

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, in *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// Clients holds the AWS clients the handlers may need. Nil members disable
// the handlers depending on them.
type Clients struct {
	Dynamo      store.DynamoAPI
	S3          archive.S3API
	EventBridge forward.PutEventsAPI
	SSM         SSMAPI
}

// InitAWS loads the default AWS config and builds every client.
func InitAWS(ctx context.Context) (aws.Config, Clients) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg, Clients{
		Dynamo:      dynamodb.NewFromConfig(cfg),
		S3:          s3.NewFromConfig(cfg),
		EventBridge: eventbridge.NewFromConfig(cfg),
		SSM:         ssm.NewFromConfig(cfg),
	}
}

// GetParameter reads a SecureString parameter.
func GetParameter(ctx context.Context, client SSMAPI, name string) (string, error) {
	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read SSM parameter %s: %w", name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("SSM parameter %s has no value", name)
	}
	log.Debug().Str("param", name).Dur("elapsed", time.Since(start)).Msg("Parameter loaded from SSM")
	return *result.Parameter.Value, nil
}

// PutParameter writes a SecureString parameter, overwriting any existing
// value.
func PutParameter(ctx context.Context, client SSMAPI, name, value string) error {
	_, err := client.PutParameter(ctx, &ssm.PutParameterInput{
		Name:      &name,
		Value:     &value,
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("write SSM parameter %s: %w", name, err)
	}
	return nil
}

// LoadSecrets fills the app secret and the subscription tokens from SSM when
// the environment did not provide them.
func LoadSecrets(ctx context.Context, client SSMAPI, cfg *config.Config) error {
	if client == nil {
		return errors.New("no SSM client")
	}
	if cfg.AppSecret == "" && cfg.SSMAppSecretParam != "" {
		secret, err := GetParameter(ctx, client, cfg.SSMAppSecretParam)
		if err != nil {
			return err
		}
		cfg.AppSecret = secret
	}
	if len(cfg.Subscriptions) == 0 && cfg.SSMSubscriptionsParam != "" {
		raw, err := GetParameter(ctx, client, cfg.SSMSubscriptionsParam)
		if err != nil {
			return err
		}
		subs, err := config.ParseSubscriptions(raw)
		if err != nil {
			return fmt.Errorf("SSM parameter %s: %w", cfg.SSMSubscriptionsParam, err)
		}
		cfg.Subscriptions = subs
	}
	return nil
}

// Handlers builds the update handler chain: always a LogHandler, then the
// ledger, archive and EventBridge forwarder when configured. The returned
// map reports which optional handlers are enabled.
func Handlers(cfg *config.Config, clients Clients) ([]webhook.UpdateHandler, map[string]bool, error) {
	handlers := []webhook.UpdateHandler{webhook.LogHandler{}}
	features := map[string]bool{"ledger": false, "archive": false, "eventbridge": false}

	if cfg.Table != "" && clients.Dynamo != nil {
		handlers = append(handlers, store.NewUpdateLedger(clients.Dynamo, cfg.Table))
		features["ledger"] = true
	}
	if cfg.ArchiveBucket != "" && clients.S3 != nil {
		a, err := archive.NewS3Archiver(clients.S3, cfg.ArchiveBucket)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, a)
		features["archive"] = true
	}
	if cfg.ForwardEvents && clients.EventBridge != nil {
		handlers = append(handlers, forward.NewEventBridge(clients.EventBridge, cfg.EventBus))
		features["eventbridge"] = true
	}
	return handlers, features, nil
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
