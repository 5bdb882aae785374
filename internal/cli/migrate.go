package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tasky/internal/config"
)

func newMigrateCommand(opts *options) *cobra.Command {
	var roles []string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the local SQLite schema and seed roles",
		Long: `Create or update the four relations in the local SQLite database and
insert the given roles when the roles table is empty. Remote stores own
their schema, so this command only works with the sqlite driver.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.local == nil {
				return fmt.Errorf("migrate needs the %s driver, configured driver is %s", config.DriverSQLite, a.cfg.StoreDriver)
			}
			seeded, err := a.local.SeedRoles(cmd.Context(), roles)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready at %s, %d role(s) seeded\n", a.cfg.DatabaseURL, seeded)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&roles, "roles", []string{"Administrator", "Member"}, "roles to seed into an empty roles table")
	return cmd
}
