package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tasky/internal/service"
)

func newUserCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect and delete users",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list [search]",
		Short: "List users ordered by name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			search := ""
			if len(args) == 1 {
				search = args[0]
			}
			users, err := a.users.ListUsers(cmd.Context(), search)
			if err != nil {
				return err
			}
			roles, err := a.users.ListRoles(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\n", u.ID, u.DisplayName, service.RoleLabel(roles, u.RoleID))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "relations <id>",
		Short: "Count the assignments referencing a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			rel, err := a.cascade.CheckRelations(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d has %d assignment(s)\n", rel.UserID, rel.Count)
			return nil
		},
	})

	var yes bool
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user, with its assignments when confirmed",
		Long: `Delete a user. A user without assignments is deleted directly. A user with
assignments is only deleted with --yes, and only if the number of
assignments does not change between the check and the deletion.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			rel, err := a.cascade.CheckRelations(cmd.Context(), id)
			if err != nil {
				return err
			}
			var confirm service.Confirmation
			if yes {
				confirm = service.ConfirmCount(rel.Count)
			} else if rel.Count > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "user %d has %d assignment(s); rerun with --yes to delete them too\n", id, rel.Count)
			}

			res, err := a.cascade.DeleteUser(cmd.Context(), id, confirm)
			printCascade(cmd.OutOrStdout(), res)
			if err != nil {
				return operatorError{err}
			}
			return nil
		},
	}
	deleteCmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting the user's assignments")
	cmd.AddCommand(deleteCmd)

	return cmd
}
