package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blockedby/groupinviter/internal/metrics"
	"github.com/blockedby/groupinviter/internal/repository"
	"github.com/blockedby/groupinviter/internal/scraper"
	"github.com/blockedby/groupinviter/internal/telegram"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "search <keyword>...",
		Short: "Search public groups with the automation account",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setup(ctx, opts, true)
			if err != nil {
				return err
			}
			defer e.close()

			tgManager := telegram.NewManager(e.cfg, e.db.GORM)
			if err := tgManager.Init(ctx); err != nil {
				return fmt.Errorf("telegram: %w", err)
			}
			defer tgManager.Stop()
			if tgManager.GetStatus() != telegram.StatusReady {
				return fmt.Errorf("automation account is %s, log in with tg-auth first", tgManager.GetStatus())
			}
			tgClient := telegram.NewClient(tgManager, telegram.NewRateLimiter(e.cfg.TGRPS, 1))

			groupsRepo := repository.NewGroupsRepository(e.db.GORM)
			svc := scraper.NewService(tgClient, groupsRepo,
				repository.NewContactsRepository(e.db.GORM),
				repository.NewUsersRepository(e.db.GORM),
				nil, metrics.New(), scraper.OptionsFromConfig(e.cfg), e.log.Named("scraper"))

			found, err := svc.Search(ctx, scraper.ParseKeywords(strings.Join(args, ",")))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tMEMBERS\tTITLE")
			for _, ch := range found {
				fmt.Fprintf(w, "@%s\t%d\t%s\n", ch.Username, ch.ParticipantsCount, ch.Title)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if !save || len(found) == 0 {
				return nil
			}
			// operator saves are not bound to a bot user's daily quota
			res, err := svc.SaveGroups(ctx, found, 0)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "saved %d new group(s), %d already stored\n", res.Added, res.Existing)
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Store every found group")
	return cmd
}
