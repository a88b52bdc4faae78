package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fpang/fbgraph/internal/lambdaboot"
	"github.com/fpang/fbgraph/internal/store"
)

var (
	ledgerObjectFlag string
	ledgerIDFlag     int64
	ledgerLimitFlag  int
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show the latest stored updates of one object",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Table == "" {
			return fmt.Errorf("table is required (FB_TABLE or --table)")
		}
		_, clients := lambdaboot.InitAWS(cmd.Context())
		ledger := store.NewUpdateLedger(clients.Dynamo, cfg.Table)

		records, err := ledger.RecentUpdates(cmd.Context(), ledgerObjectFlag, ledgerIDFlag, ledgerLimitFlag)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tSUBSCRIPTION\tFIELDS\tDELIVERY")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				time.Unix(r.Time, 0).UTC().Format(time.RFC3339), r.Subscription,
				strings.Join(r.ChangedFields, ","), r.DeliveryID)
		}
		return tw.Flush()
	},
}

func init() {
	f := ledgerCmd.Flags()
	f.StringVar(&ledgerObjectFlag, "object", "user", "Object type")
	f.Int64Var(&ledgerIDFlag, "id", 0, "Object id")
	f.IntVar(&ledgerLimitFlag, "limit", 20, "Maximum entries, newest first")
	f.String("table", "", "DynamoDB table ($FB_TABLE)")
	_ = ledgerCmd.MarkFlagRequired("id")
}
