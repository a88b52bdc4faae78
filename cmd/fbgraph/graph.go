package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fpang/fbgraph/internal/graph"
)

var (
	objectFlag        string
	fieldsFlag        []string
	callbackURLFlag   string
	verifyTokenFlag   string
	includeValuesFlag bool
	tokenFlag         string
	meFieldsFlag      []string
)

func newGraphClient() (*graph.Client, error) {
	if err := cfg.ValidateGraph(); err != nil {
		return nil, err
	}
	return graph.NewClient(cfg.AppID, cfg.AppSecret, graph.WithBaseURL(cfg.GraphBaseURL)), nil
}

var subscriptionsCmd = &cobra.Command{
	Use:     "subscriptions",
	Aliases: []string{"subs"},
	Short:   "Manage the app's realtime update subscriptions",
}

var subscriptionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscriptions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newGraphClient()
		if err != nil {
			return err
		}
		subs, err := client.ListSubscriptions(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "OBJECT\tACTIVE\tCALLBACK\tFIELDS")
		for _, s := range subs {
			fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", s.Object, s.Active, s.CallbackURL, strings.Join(s.Fields, ","))
		}
		return tw.Flush()
	},
}

var subscriptionsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create or update the subscription of an object",
	Long: `Create or update the subscription of an object. Facebook verifies the
callback URL with the GET handshake before answering, so the endpoint must be
reachable and know the verify token.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newGraphClient()
		if err != nil {
			return err
		}
		return client.Subscribe(cmd.Context(), graph.Subscription{
			Object:        objectFlag,
			CallbackURL:   callbackURLFlag,
			Fields:        fieldsFlag,
			VerifyToken:   verifyTokenFlag,
			IncludeValues: includeValuesFlag,
		})
	},
}

var subscriptionsRemoveCmd = &cobra.Command{
	Use:   "remove [object]",
	Short: "Remove the subscription of an object, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newGraphClient()
		if err != nil {
			return err
		}
		object := ""
		if len(args) == 1 {
			object = args[0]
		}
		return client.Unsubscribe(cmd.Context(), object)
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the user owning an access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tokenFlag == "" {
			return fmt.Errorf("--token is required")
		}
		client, err := newGraphClient()
		if err != nil {
			return err
		}
		user, err := client.Me(cmd.Context(), tokenFlag, meFieldsFlag...)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(user)
	},
}

var loginURLCmd = &cobra.Command{
	Use:   "login-url",
	Short: "Print the Facebook Login dialog URL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newGraphClient()
		if err != nil {
			return err
		}
		if cfg.RedirectURL == "" {
			return fmt.Errorf("redirect URL is required (FB_OAUTH_REDIRECT_URL or --redirect-url)")
		}
		fmt.Fprintln(cmd.OutOrStdout(), client.OAuth(cfg.RedirectURL, cfg.Scopes...).AuthCodeURL(uuid.NewString()))
		return nil
	},
}

func init() {
	af := subscriptionsAddCmd.Flags()
	af.StringVar(&objectFlag, "object", "", "Object type: user, page, permissions, ...")
	af.StringSliceVar(&fieldsFlag, "fields", nil, "Fields to subscribe to")
	af.StringVar(&callbackURLFlag, "callback-url", "", "Public URL of the realtime endpoint, subscription name included")
	af.StringVar(&verifyTokenFlag, "verify-token", "", "Verify token of that subscription")
	af.BoolVar(&includeValuesFlag, "include-values", false, "Ask for changed values, not just field names")
	_ = subscriptionsAddCmd.MarkFlagRequired("object")
	_ = subscriptionsAddCmd.MarkFlagRequired("callback-url")

	subscriptionsCmd.AddCommand(subscriptionsListCmd, subscriptionsAddCmd, subscriptionsRemoveCmd)

	meCmd.Flags().StringVar(&tokenFlag, "token", "", "User access token")
	meCmd.Flags().StringSliceVar(&meFieldsFlag, "fields", nil, "Fields to request (default id,name,email,locale)")

	loginURLCmd.Flags().String("redirect-url", "", "OAuth redirect URL ($FB_OAUTH_REDIRECT_URL)")
	loginURLCmd.Flags().StringSlice("scopes", nil, "Permissions to request ($FB_OAUTH_SCOPES)")
}
