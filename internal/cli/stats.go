package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockedby/groupinviter/internal/repository"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var asJSON, perGroup bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print database totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			dayStart := repository.StartOfDay(time.Now())
			out := cmd.OutOrStdout()

			stats, err := repository.NewStatsRepository(e.db.GORM).GetStats(ctx, dayStart)
			if err != nil {
				return err
			}
			if asJSON && !perGroup {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			if !perGroup {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "groups\t%d\n", stats.Groups)
				fmt.Fprintf(w, "contacts\t%d\n", stats.Contacts)
				fmt.Fprintf(w, "users\t%d\n", stats.Users)
				fmt.Fprintf(w, "invites\t%d\n", stats.InvitesTotal)
				fmt.Fprintf(w, "  success\t%d\n", stats.InvitesSuccess)
				fmt.Fprintf(w, "  declined\t%d\n", stats.InvitesDeclined)
				fmt.Fprintf(w, "  failed\t%d\n", stats.InvitesFailed)
				fmt.Fprintf(w, "  today\t%d\n", stats.InvitesToday)
				return w.Flush()
			}

			groups, err := repository.NewGroupsRepository(e.db.GORM).ListWithStats(ctx, dayStart)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(groups)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tCONTACTS\tINVITED\tDECLINED\tPENDING\tTODAY")
			for _, g := range groups {
				fmt.Fprintf(w, "%d\t@%s\t%d\t%d\t%d\t%d\t%d\n",
					g.ID, g.Username, g.Contacts, g.Invited, g.Declined, g.Pending, g.InvitedToday)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.Flags().BoolVar(&perGroup, "groups", false, "Print one row per group")
	return cmd
}
