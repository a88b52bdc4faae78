// Command fbgraph runs the Facebook realtime endpoint locally and manages the
// app from the command line: signed requests, subscriptions, tokens and the
// update ledger.
//
// Settings come from FB_* environment variables (a .env file in the working
// directory is loaded first), an optional --config file and flags.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fpang/fbgraph/internal/config"
	"github.com/fpang/fbgraph/internal/logging"
)

var (
	configFlag    string
	logLevelFlag  string
	logFormatFlag string

	v   *viper.Viper
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fbgraph",
	Short: "Facebook signed requests, realtime updates and Graph API tooling",
	Long: `fbgraph serves the Facebook realtime updates endpoint and helps manage an app.

Examples:
  fbgraph serve --listen :8080
  fbgraph sign --claims '{"user_id":"777"}'
  fbgraph decode <signed_request>
  fbgraph subscriptions list
  fbgraph subscriptions add --object user --fields friends,feed --callback-url https://example.com/realtime/facebook/foo --verify-token yabbadabbadoo
  fbgraph me --token <user token>`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFlag, "config", "c", "", "Config file (yaml, json or toml)")
	pf.StringVar(&logLevelFlag, "log-level", "", "Log level: trace, debug, info, warn, error (default $FB_LOG_LEVEL or info)")
	pf.StringVar(&logFormatFlag, "log-format", "", "Log format: console or json (default $FB_LOG_FORMAT or console)")
	pf.String("app-id", "", "Facebook app id ($FB_APP_ID)")
	pf.String("app-secret", "", "Facebook app secret ($FB_APP_SECRET)")
	pf.String("graph-base-url", "", "Graph API base URL ($FB_GRAPH_BASE_URL)")

	rootCmd.AddCommand(serveCmd, signCmd, decodeCmd, subscriptionsCmd, meCmd, loginURLCmd, ledgerCmd)
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"app-id":         config.KeyAppID,
	"app-secret":     config.KeyAppSecret,
	"graph-base-url": config.KeyGraphBaseURL,
	"subscriptions":  config.KeySubscriptions,
	"listen":         config.KeyListen,
	"base-path":      config.KeyBasePath,
	"table":          config.KeyTable,
	"redirect-url":   config.KeyRedirectURL,
	"scopes":         config.KeyScopes,
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return err
	}

	level := logLevelFlag
	if level == "" {
		level = os.Getenv(logging.EnvLevel)
	}
	format := logFormatFlag
	if format == "" {
		format = os.Getenv(logging.EnvFormat)
	}
	logging.InitWith(level, format)

	v = config.New()
	if err := config.ReadFile(v, configFlag); err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	var err error
	cfg, err = config.Load(v)
	if err != nil {
		return err
	}
	log.Debug().Str("config", v.ConfigFileUsed()).Strs("subscriptions", cfg.SubscriptionNames()).Msg("Configuration loaded")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
