// Package config loads the app settings shared by the lambdas and the
// fbgraph CLI. Values come from, in increasing precedence: defaults, an
// optional config file, FB_* environment variables and bound flags.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. FB_APP_SECRET.
const EnvPrefix = "FB"

// Keys, also usable with viper.BindPFlag.
const (
	KeyAppID            = "app_id"
	KeyAppSecret        = "app_secret"
	KeySubscriptions    = "subscriptions"
	KeyGraphBaseURL     = "graph_base_url"
	KeyListen           = "listen"
	KeyBasePath         = "base_path"
	KeyTable            = "table"
	KeyArchiveBucket    = "archive_bucket"
	KeyEventBus         = "event_bus"
	KeyForwardEvents    = "forward_events"
	KeyRedirectURL      = "oauth_redirect_url"
	KeyScopes           = "oauth_scopes"
	KeySSMAppSecret     = "ssm_app_secret_param"
	KeySSMSubscriptions = "ssm_subscriptions_param"
	KeySSMTokenPrefix   = "ssm_token_prefix"
)

// Config is the resolved configuration.
type Config struct {
	AppID     string
	AppSecret string
	// Subscriptions maps a subscription name to its verify token.
	Subscriptions map[string]string

	GraphBaseURL string
	Listen       string
	// BasePath is the route prefix of the realtime endpoint; the
	// subscription name is the segment after it.
	BasePath string

	Table         string
	ArchiveBucket string
	EventBus      string
	ForwardEvents bool

	RedirectURL string
	Scopes      []string

	// SSM parameter names consulted when the values above are missing.
	SSMAppSecretParam     string
	SSMSubscriptionsParam string
	SSMTokenPrefix        string
}

var defaults = map[string]any{
	KeyAppID:            "",
	KeyAppSecret:        "",
	KeySubscriptions:    "",
	KeyGraphBaseURL:     "https://graph.facebook.com/v19.0",
	KeyListen:           ":8080",
	KeyBasePath:         "/realtime/facebook",
	KeyTable:            "",
	KeyArchiveBucket:    "",
	KeyEventBus:         "",
	KeyForwardEvents:    false,
	KeyRedirectURL:      "",
	KeyScopes:           []string{"public_profile", "email"},
	KeySSMAppSecret:     "/fbgraph/prod/app-secret",
	KeySSMSubscriptions: "/fbgraph/prod/subscriptions",
	KeySSMTokenPrefix:   "/fbgraph/prod/tokens/",
}

// New returns a viper instance with defaults and FB_* environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return v
}

// ReadFile merges the config file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load resolves a Config from v.
func Load(v *viper.Viper) (*Config, error) {
	subs, err := subscriptionsFrom(v.Get(KeySubscriptions))
	if err != nil {
		return nil, err
	}

	return &Config{
		AppID:                 strings.TrimSpace(v.GetString(KeyAppID)),
		AppSecret:             strings.TrimSpace(v.GetString(KeyAppSecret)),
		Subscriptions:         subs,
		GraphBaseURL:          v.GetString(KeyGraphBaseURL),
		Listen:                v.GetString(KeyListen),
		BasePath:              "/" + strings.Trim(v.GetString(KeyBasePath), "/"),
		Table:                 v.GetString(KeyTable),
		ArchiveBucket:         v.GetString(KeyArchiveBucket),
		EventBus:              v.GetString(KeyEventBus),
		ForwardEvents:         v.GetBool(KeyForwardEvents),
		RedirectURL:           v.GetString(KeyRedirectURL),
		Scopes:                v.GetStringSlice(KeyScopes),
		SSMAppSecretParam:     v.GetString(KeySSMAppSecret),
		SSMSubscriptionsParam: v.GetString(KeySSMSubscriptions),
		SSMTokenPrefix:        v.GetString(KeySSMTokenPrefix),
	}, nil
}

// Route returns the http.ServeMux pattern of the realtime endpoint.
func (c *Config) Route() string {
	return strings.TrimRight(c.BasePath, "/") + "/{subscription}"
}

// SubscriptionNames returns the configured subscription names, sorted.
func (c *Config) SubscriptionNames() []string {
	names := make([]string, 0, len(c.Subscriptions))
	for name := range c.Subscriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateWebhook checks what the realtime endpoint needs.
func (c *Config) ValidateWebhook() error {
	var errs []error
	if c.AppSecret == "" {
		errs = append(errs, errors.New("app secret is required (FB_APP_SECRET)"))
	}
	if len(c.Subscriptions) == 0 {
		errs = append(errs, errors.New("at least one subscription is required (FB_SUBSCRIPTIONS=name=token,...)"))
	}
	for _, name := range c.SubscriptionNames() {
		if err := checkSubscription(name, c.Subscriptions[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateGraph checks what Graph API calls made as the app need.
func (c *Config) ValidateGraph() error {
	var errs []error
	if c.AppID == "" {
		errs = append(errs, errors.New("app id is required (FB_APP_ID)"))
	}
	if c.AppSecret == "" {
		errs = append(errs, errors.New("app secret is required (FB_APP_SECRET)"))
	}
	return errors.Join(errs...)
}

// ParseSubscriptions parses "name=token,name=token". Whitespace around
// entries is ignored; names must be unique and non-empty, and every
// subscription needs a non-empty verify token.
func ParseSubscriptions(s string) (map[string]string, error) {
	subs := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, token, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid subscription %q: want name=token", part)
		}
		name = strings.TrimSpace(name)
		if _, dup := subs[name]; dup {
			return nil, fmt.Errorf("duplicate subscription %q", name)
		}
		if err := checkSubscription(name, strings.TrimSpace(token)); err != nil {
			return nil, err
		}
		subs[name] = strings.TrimSpace(token)
	}
	return subs, nil
}

// checkSubscription rejects names that cannot be a path segment and empty
// verify tokens, which would let a handshake without hub.verify_token pass.
func checkSubscription(name, token string) error {
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("invalid subscription name %q", name)
	}
	if token == "" {
		return fmt.Errorf("subscription %q has an empty verify token", name)
	}
	return nil
}

// subscriptionsFrom accepts the env/flag string form or a map from a config
// file.
func subscriptionsFrom(raw any) (map[string]string, error) {
	switch val := raw.(type) {
	case nil:
		return map[string]string{}, nil
	case string:
		return ParseSubscriptions(val)
	case map[string]any:
		subs := make(map[string]string, len(val))
		for name, token := range val {
			var s string
			switch t := token.(type) {
			case nil:
			case string:
				s = strings.TrimSpace(t)
			default:
				s = fmt.Sprint(t)
			}
			if err := checkSubscription(name, s); err != nil {
				return nil, err
			}
			subs[name] = s
		}
		return subs, nil
	case map[string]string:
		subs := make(map[string]string, len(val))
		for name, token := range val {
			token = strings.TrimSpace(token)
			if err := checkSubscription(name, token); err != nil {
				return nil, err
			}
			subs[name] = token
		}
		return subs, nil
	default:
		return nil, fmt.Errorf("subscriptions: unsupported type %T", raw)
	}
}
