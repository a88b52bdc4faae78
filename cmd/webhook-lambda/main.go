// Package main is the Lambda entry point of the Facebook realtime endpoint.
//
// Routes (API Gateway HTTP API, payload v2):
//   - GET  {base}/{subscription}: subscription verification handshake
//   - POST {base}/{subscription}: signed update notifications
//   - POST /deauthorize: Deauthorize Callback carrying a signed_request
//
// The app secret and the subscription tokens come from FB_* variables, or
// from SSM Parameter Store at cold start when those are unset.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/fbgraph/internal/config"
	"github.com/fpang/fbgraph/internal/lambdaboot"
	"github.com/fpang/fbgraph/internal/logging"
	"github.com/fpang/fbgraph/internal/store"
	"github.com/fpang/fbgraph/internal/webhook"
)

var adapter *httpadapter.HandlerAdapterV2

func init() {
	initStart := time.Now()
	logging.Init()

	ctx := context.Background()
	_, clients := lambdaboot.InitAWS(ctx)

	cfg, err := config.Load(config.New())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := lambdaboot.LoadSecrets(ctx, clients.SSM, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to load secrets from SSM")
	}
	if err := cfg.ValidateWebhook(); err != nil {
		log.Fatal().Err(err).Msg("Webhook configuration incomplete")
	}

	handlers, features, err := lambdaboot.Handlers(cfg, clients)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build update handlers")
	}

	var deauth *store.DeauthorizationStore
	if cfg.Table != "" {
		deauth = store.NewDeauthorizationStore(clients.Dynamo, cfg.Table)
	}

	reg := webhook.NewRegistry(cfg.AppSecret, cfg.Subscriptions, handlers...)
	adapter = httpadapter.NewV2(newMux(cfg, webhook.NewDispatcher(reg), deauth))

	sl := lambdaboot.StartupLog("webhook-lambda", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		SSMParam("appSecret", cfg.SSMAppSecretParam).
		SSMParam("subscriptions", cfg.SSMSubscriptionsParam).
		Subscriptions(cfg.SubscriptionNames()...).
		Config("route", cfg.Route())
	if cfg.Table != "" {
		sl.DynamoTable("ledger", cfg.Table)
	}
	if cfg.ArchiveBucket != "" {
		sl.S3Bucket("archive", cfg.ArchiveBucket)
	}
	if cfg.ForwardEvents {
		sl.EventBus("updates", cfg.EventBus)
	}
	for name, on := range features {
		sl.Feature(name, on)
	}
	sl.Log()
}

func main() {
	lambda.Start(adapter.ProxyWithContext)
}
