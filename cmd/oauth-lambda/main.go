// Package main is the Lambda entry point of the Facebook Login flow.
//
// Routes (API Gateway HTTP API, payload v2):
//   - GET /oauth/start: redirect to the login dialog with a state cookie
//   - GET /oauth/callback?code=...: exchange the code for a long-lived user
//     token and store it in SSM under {token prefix}{user id}
//   - GET /oauth/callback?error=...: the user declined
//
// A successful login clears any recorded deauthorization of the user.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/fbgraph/internal/config"
	"github.com/fpang/fbgraph/internal/graph"
	"github.com/fpang/fbgraph/internal/lambdaboot"
	"github.com/fpang/fbgraph/internal/logging"
	"github.com/fpang/fbgraph/internal/store"
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
	if err := cfg.ValidateGraph(); err != nil {
		log.Fatal().Err(err).Msg("Graph configuration incomplete")
	}
	if cfg.RedirectURL == "" {
		log.Fatal().Msg("FB_OAUTH_REDIRECT_URL is required")
	}

	client := graph.NewClient(cfg.AppID, cfg.AppSecret, graph.WithBaseURL(cfg.GraphBaseURL))
	app := &loginApp{
		client:      client,
		flow:        client.OAuth(cfg.RedirectURL, cfg.Scopes...),
		ssm:         clients.SSM,
		tokenPrefix: cfg.SSMTokenPrefix,
	}
	if cfg.Table != "" {
		app.deauth = store.NewDeauthorizationStore(clients.Dynamo, cfg.Table)
	}
	adapter = httpadapter.NewV2(app.routes())

	sl := lambdaboot.StartupLog("oauth-lambda", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime).
		SSMParam("appSecret", cfg.SSMAppSecretParam).
		SSMParam("tokenPrefix", cfg.SSMTokenPrefix).
		Config("redirectUrl", cfg.RedirectURL).
		Config("graphBaseUrl", cfg.GraphBaseURL).
		Feature("deauthorizationStore", app.deauth != nil)
	if cfg.Table != "" {
		sl.DynamoTable("deauthorizations", cfg.Table)
	}
	sl.Log()
}

func main() {
	lambda.Start(adapter.ProxyWithContext)
}
