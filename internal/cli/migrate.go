package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.migrateUp(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer e.close()

			m, err := e.migrator()
			if err != nil {
				return err
			}
			if err := m.Down(cmd.Context(), e.db.GORM); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			v, err := m.Version(cmd.Context(), e.db.GORM)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back, schema version %d\n", v)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer e.close()

			m, err := e.migrator()
			if err != nil {
				return err
			}
			v, err := m.Version(cmd.Context(), e.db.GORM)
			if err != nil {
				return err
			}
			latest := uint(0)
			if all := m.Migrations(); len(all) > 0 {
				latest = all[len(all)-1].Version
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (latest %d)\n", v, latest)
			return nil
		},
	})

	return cmd
}
